package framer

import (
	"context"
	stderrors "errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrConnectionClosed is returned when operating on a closed connection.
var ErrConnectionClosed = stderrors.New("connection closed")

// ErrBufferFull is returned when the send queue is full and cannot accept
// more frames. This error indicates backpressure - the receiver is not
// consuming frames fast enough. Recommended handling strategies:
//   - Drop the frame (for non-critical data like metrics)
//   - Use WriteBlocking or WriteTimeout to wait for queue space
//   - Implement application-level flow control
var ErrBufferFull = stderrors.New("send buffer full")

// Default configuration values.
const (
	// defaultSendQueueSize is the default size of the send channel buffer.
	defaultSendQueueSize = 1
	// defaultReadChunkSize is the default size of the socket read buffer.
	defaultReadChunkSize = 4 * 1024
	// defaultMaxFrameSize is the default maximum size of a single frame (1MB).
	defaultMaxFrameSize = 1024 * 1024
)

// boundedExtractor caps the frame sizes an extractor accepts. Oversized
// frames fail validation before any body byte is read, so a connection
// never buffers more than max bytes per frame.
type boundedExtractor struct {
	HeaderExtractor
	max int
}

func (e boundedExtractor) ValidateMessageSize(size int) bool {
	return e.HeaderExtractor.ValidateMessageSize(size) && size <= e.max
}

// Conn represents a framed TCP connection. The read side pumps raw socket
// chunks into an Assembler, so the frame callback receives complete frames
// regardless of how the bytes were segmented on the wire. The write side
// queues pre-framed byte slices for sending.
type Conn struct {
	rawConn   *net.TCPConn
	assembler *Assembler
	logger    Logger

	opts options

	sendMsg chan []byte
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// NewConn creates a framed connection around the given TCP connection.
// The extractor defines the wire format's length prefix; the OnFrameOption
// callback is required. Frame sizes are additionally capped by
// MaxFrameSizeOption (1MB by default).
func NewConn(conn *net.TCPConn, extractor HeaderExtractor, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	err := checkConnOptions(&opts)
	if err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, extractor, opts)
}

// newConnWithOptions creates a Conn with validated options.
func newConnWithOptions(c *net.TCPConn, extractor HeaderExtractor, opts options) (*Conn, error) {
	if extractor == nil {
		return nil, ErrInvalidExtractor
	}

	assembler, err := newAssemblerWithOptions(boundedExtractor{extractor, opts.maxFrameSize}, opts)
	if err != nil {
		return nil, err
	}

	cc := &Conn{
		rawConn:   c,
		assembler: assembler,
		logger:    opts.logger,
		opts:      opts,
		sendMsg:   make(chan []byte, opts.sendQueueSize),
	}

	return cc, nil
}

// Run starts the connection's read and write loops.
// It creates two goroutines for concurrent reading and writing,
// and blocks until an error occurs or the context is canceled.
// The connection is automatically closed when Run returns, and any frame
// notifications still pending are flushed before Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"send_queue_size", c.opts.sendQueueSize,
		"read_chunk_size", c.opts.readChunkSize,
		"max_frame_size", c.opts.maxFrameSize,
		"idle_timeout", c.opts.idleTimeout)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()
	_ = c.assembler.Close()

	if err != nil && !stderrors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}

	return err
}

// Close gracefully closes the connection.
// It cancels the context, closes the underlying TCP connection and stops
// the assembler after flushing pending frame notifications.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	if c.cancel != nil {
		c.cancel()
	}
	err := c.rawConn.Close()
	_ = c.assembler.Close()
	return err
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write queues a frame for sending without blocking (fire-and-forget).
// The frame must already carry its length prefix; the connection sends it
// verbatim.
//
// Returns:
//   - nil: frame was successfully queued (not yet sent)
//   - ErrBufferFull: send queue is full, frame was NOT queued
//   - ErrConnectionClosed: connection is closed
//
// For guaranteed delivery, use WriteBlocking or WriteTimeout instead.
func (c *Conn) Write(frame []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendMsg <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking queues a frame for sending, blocking until the frame is
// queued or the context is canceled. This is the safest write method for
// guaranteed delivery.
//
// Returns:
//   - nil: frame was successfully queued
//   - context.Canceled or context.DeadlineExceeded: context was canceled
//   - ErrConnectionClosed: connection is closed
func (c *Conn) WriteBlocking(ctx context.Context, frame []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout queues a frame for sending with a timeout.
// This provides a middle ground between Write (non-blocking) and
// WriteBlocking.
//
// Returns:
//   - nil: frame was successfully queued
//   - ErrBufferFull: timeout expired before the frame could be queued
//   - ErrConnectionClosed: connection is closed
func (c *Conn) WriteTimeout(frame []byte, timeout time.Duration) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-time.After(timeout):
		return ErrBufferFull
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// readLoop continuously reads raw chunks from the connection and feeds them
// to the assembler. Complete frames reach the frame callback via the
// assembler's dispatcher. Returns when the context is canceled, the
// assembler shuts down on a decode error, or an unrecoverable read error
// occurs.
func (c *Conn) readLoop(ctx context.Context) error {
	chunk := make([]byte, c.opts.readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))

			n, err := c.rawConn.Read(chunk)
			if n > 0 {
				if !c.assembler.Consume(chunk[:n]) {
					decodeErr := c.assembler.Err()
					if decodeErr == nil {
						decodeErr = ErrConnectionClosed
					}
					c.logger.Debug("frame decode failed", "addr", c.Addr(), "error", decodeErr)
					return errors.Wrap(decodeErr, "consume chunk")
				}
			}

			if err != nil {
				c.logger.Debug("read error", "addr", c.Addr(), "error", err)
				if c.opts.onError(err) == Disconnect {
					return err
				}
			}
		}
	}
}

// writeLoop continuously sends frames from the send channel to the
// connection. Returns when the context is canceled or an unrecoverable
// error occurs.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

// write sends data to the connection with a deadline.
// If an error occurs and onError returns Disconnect, the error is
// propagated. Otherwise, the error is suppressed and writing continues.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))

	_, err := c.rawConn.Write(data)

	if err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP
// connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
