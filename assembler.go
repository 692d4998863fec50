// Package framer reconstructs discrete, length-prefixed frames from a
// continuous, possibly-chunked byte stream. A pluggable HeaderExtractor
// describes the length prefix; the Assembler is the incremental state
// machine that turns arbitrary-sized chunks back into complete frames.
package framer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Errors returned by assembler construction.
var (
	// ErrInvalidExtractor is returned when no header extractor is provided
	// or its header byte count is not positive.
	ErrInvalidExtractor = errors.New("invalid header extractor")
	// ErrInvalidOnFrame is returned when no frame handler is provided.
	ErrInvalidOnFrame = errors.New("invalid on frame callback")
	// ErrInvalidBufferSize is returned when a non-positive initial buffer
	// size is configured.
	ErrInvalidBufferSize = errors.New("invalid initial buffer size")
)

// ErrInvalidMessageSize is the decode error reported when a header declares
// a frame size the extractor's validator rejects. It is the only runtime
// fatal condition; a bad length prefix means the stream is desynchronized
// and cannot be recovered without external resynchronization.
var ErrInvalidMessageSize = errors.New("invalid message size")

// SizeError carries the rejected frame size alongside ErrInvalidMessageSize.
type SizeError struct {
	// Size is the frame size the header declared.
	Size int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("invalid message size %d", e.Size)
}

func (e *SizeError) Unwrap() error {
	return ErrInvalidMessageSize
}

// defaultInitialBufferSize is the default capacity of the carry-over buffer.
const defaultInitialBufferSize = 10 * 1024

// Assembler is the stateful frame decoder. It consumes byte chunks of any
// size, buffers the bytes of an in-progress frame across chunk boundaries,
// and reports each complete frame exactly once, in arrival order, through
// the configured callbacks.
//
// An Assembler is not safe for concurrent use: one Consume call must
// complete before the next begins. Callbacks run on a dedicated dispatcher
// goroutine, never inside Consume, so a callback may safely call Consume.
// Close must not be called from a callback: it waits for the dispatcher to
// drain and would deadlock.
type Assembler struct {
	extractor HeaderExtractor
	headerLen int
	opts      options

	buf          []byte // carry-over storage for the in-progress frame
	carried      int    // valid bytes in buf
	expectedSize int    // total frame size once known, header width until then
	headerKnown  bool

	shutdown atomic.Bool
	lastErr  error

	dispatch *dispatcher
}

// New creates an Assembler bound to the given extractor. The OnFrameOption
// callback is required; see the other options for buffer sizing, decode
// error handling and logging.
func New(extractor HeaderExtractor, opt ...Option) (*Assembler, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newAssemblerWithOptions(extractor, opts)
}

// newAssemblerWithOptions creates an Assembler from already-validated
// options and starts its dispatcher.
func newAssemblerWithOptions(extractor HeaderExtractor, opts options) (*Assembler, error) {
	if extractor == nil || extractor.HeaderByteCount() <= 0 {
		return nil, ErrInvalidExtractor
	}

	a := &Assembler{
		extractor: extractor,
		headerLen: extractor.HeaderByteCount(),
		opts:      opts,
		buf:       make([]byte, opts.initialBufferSize),
		dispatch:  newDispatcher(opts.onFrame, opts.onDecodeError),
	}

	go a.dispatch.run()

	return a, nil
}

// Consume feeds one chunk to the assembler. The entire chunk is processed,
// completing zero or more frames; each completed frame is scheduled for
// asynchronous delivery to the frame callback, in completion order.
//
// Consume returns false without touching the chunk if the assembler is
// already shut down, and false if a size validation failure occurs partway
// through the chunk. In the latter case the decode error is scheduled for
// delivery, the assembler shuts down permanently, and the remaining bytes
// of the chunk are discarded.
func (a *Assembler) Consume(chunk []byte) bool {
	if a.shutdown.Load() {
		return false
	}

	for {
		if a.carried == 0 {
			// Awaiting a header with nothing carried over.
			if len(chunk) < a.headerLen {
				if len(chunk) > 0 {
					a.stash(chunk)
					a.expectedSize = a.headerLen
				}
				return true
			}

			// Enough bytes for the header: extract in place.
			size := a.extractor.ExtractMessageSize(chunk[:a.headerLen])
			if !a.extractor.ValidateMessageSize(size) {
				a.fail(size)
				return false
			}

			if len(chunk) < size {
				a.stash(chunk)
				a.expectedSize = size
				a.headerKnown = true
				return true
			}

			a.emit(chunk[:size])
			chunk = chunk[size:]
			continue
		}

		// Continuing a carried-over frame (or header).
		missing := a.expectedSize - a.carried
		if len(chunk) < missing {
			a.stash(chunk)
			return true
		}

		a.stash(chunk[:missing])
		chunk = chunk[missing:]

		if !a.headerKnown {
			// The carry buffer now holds exactly the header.
			size := a.extractor.ExtractMessageSize(a.buf[:a.headerLen])
			if !a.extractor.ValidateMessageSize(size) {
				a.fail(size)
				return false
			}

			a.expectedSize = size
			a.headerKnown = true
			if a.carried < a.expectedSize {
				continue
			}
		}

		a.emit(a.buf[:a.carried])
		a.reset()
	}
}

// IsShutdown returns true once the assembler rejects all further input,
// either after a size validation failure or after Close.
func (a *Assembler) IsShutdown() bool {
	return a.shutdown.Load()
}

// IsIdle returns true when no carry-over bytes are buffered, i.e. the next
// byte consumed starts a new frame.
func (a *Assembler) IsIdle() bool {
	return a.carried == 0
}

// Err returns the decode error that shut the assembler down, or nil.
// It remains available after shutdown for inspection.
func (a *Assembler) Err() error {
	return a.lastErr
}

// Close flushes pending notifications, stops the dispatcher goroutine and
// latches the assembler shut. It blocks until every frame and error
// scheduled before the call has been delivered. Safe to call multiple times.
func (a *Assembler) Close() error {
	a.shutdown.Store(true)
	a.dispatch.stop()
	a.dispatch.wait()
	return nil
}

// stash appends p to the carry-over buffer, reallocating to the exact
// required size when capacity runs out. Exact-fit growth trades extra
// reallocations for bounded memory use per resize.
func (a *Assembler) stash(p []byte) {
	if need := a.carried + len(p); need > len(a.buf) {
		grown := make([]byte, need)
		copy(grown, a.buf[:a.carried])
		a.buf = grown
	}

	copy(a.buf[a.carried:], p)
	a.carried += len(p)
}

// emit schedules a completed frame for delivery. The frame is copied, so
// the assembler never aliases memory handed to the caller.
func (a *Assembler) emit(frame []byte) {
	out := make([]byte, len(frame))
	copy(out, frame)
	a.dispatch.frame(out)
}

// reset returns the assembler to the awaiting-header state. The buffer's
// allocated capacity is retained to amortize future growth.
func (a *Assembler) reset() {
	a.carried = 0
	a.expectedSize = 0
	a.headerKnown = false
}

// fail records the rejected size, schedules the decode error for delivery
// and shuts the assembler down permanently.
func (a *Assembler) fail(size int) {
	err := &SizeError{Size: size}
	a.lastErr = err
	a.shutdown.Store(true)
	a.dispatch.decodeError(err)
	a.dispatch.stop()
}

// event is one queued notification: either a completed frame or a decode
// error, never both.
type event struct {
	frame []byte
	err   error
}

// dispatcher delivers notifications on its own goroutine so Consume returns
// before any callback runs. Queue order is delivery order.
type dispatcher struct {
	onFrame func(frame []byte)
	onError func(err error)

	mu      sync.Mutex
	queue   []event
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newDispatcher(onFrame func([]byte), onError func(error)) *dispatcher {
	return &dispatcher{
		onFrame: onFrame,
		onError: onError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (d *dispatcher) frame(frame []byte) {
	d.enqueue(event{frame: frame})
}

func (d *dispatcher) decodeError(err error) {
	d.enqueue(event{err: err})
}

func (d *dispatcher) enqueue(ev event) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	d.signal()
}

// signal wakes the run loop without blocking; a pending token already
// guarantees another pass over the queue.
func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// stop rejects further notifications and lets the run loop exit once the
// already-queued ones have been delivered. Safe to call multiple times.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.signal()
}

// wait blocks until the run loop has delivered everything and exited.
func (d *dispatcher) wait() {
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		pending := d.queue
		d.queue = nil
		stopped := d.stopped
		d.mu.Unlock()

		for _, ev := range pending {
			if ev.err != nil {
				d.onError(ev.err)
				continue
			}
			d.onFrame(ev.frame)
		}

		if stopped {
			return
		}

		<-d.wake
	}
}
