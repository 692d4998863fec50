package framer

import (
	"time"
)

// ErrorAction defines the action to take when a transport error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration shared by assemblers and connections.
type options struct {
	logger Logger

	// onFrame is called once per completed frame, in completion order.
	onFrame func(frame []byte)
	// onDecodeError is called once when a frame size fails validation.
	onDecodeError func(err error)
	// onError is called on transport read/write errors (connections only).
	// Returns Disconnect to close the connection, Continue to suppress.
	onError func(error) ErrorAction

	initialBufferSize int  // carry-over buffer starting capacity
	bufferSizeSet     bool // distinguishes an explicit zero from the default
	maxFrameSize      int  // largest frame a connection will accept
	readChunkSize     int  // size of a connection's read buffer
	sendQueueSize     int  // size of a connection's buffered send channel
	idleTimeout       time.Duration
}

// Option is a function that configures assembler or connection options.
type Option func(*options)

// OnFrameOption returns an Option that sets the frame handler.
// The handler is required and is invoked once for each completed frame,
// asynchronously with respect to the Consume call that completed it.
func OnFrameOption(cb func(frame []byte)) Option {
	return func(o *options) {
		o.onFrame = cb
	}
}

// OnDecodeErrorOption returns an Option that sets the decode error handler,
// invoked once when a header declares a size the extractor rejects. If not
// set, the error is logged through the configured logger.
func OnDecodeErrorOption(cb func(err error)) Option {
	return func(o *options) {
		o.onDecodeError = cb
	}
}

// OnErrorOption returns an Option that sets the transport error callback.
// The callback is invoked when a connection read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress it.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// InitialBufferSizeOption returns an Option that sets the starting capacity
// of the carry-over buffer. The buffer grows as needed; a larger initial
// size avoids reallocations for frames up to that size. Must be positive.
func InitialBufferSizeOption(size int) Option {
	return func(o *options) {
		o.initialBufferSize = size
		o.bufferSizeSet = true
	}
}

// MaxFrameSizeOption returns an Option that sets the largest frame a
// connection will accept. A header declaring a larger size is treated as a
// decode error and closes the connection.
func MaxFrameSizeOption(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// ReadChunkSizeOption returns an Option that sets the size of the buffer a
// connection reads socket data into before feeding it to the assembler.
func ReadChunkSizeOption(size int) Option {
	return func(o *options) {
		o.readChunkSize = size
	}
}

// SendQueueSizeOption returns an Option that sets the size of a
// connection's buffered send channel. A larger queue allows more frames to
// be queued before Write reports backpressure.
func SendQueueSizeOption(size int) Option {
	return func(o *options) {
		o.sendQueueSize = size
	}
}

// IdleTimeoutOption returns an Option that sets the idle timeout.
// Connection read/write deadlines are derived from it (timeout * 2).
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// checkOptions validates and sets default values for assembler options.
func checkOptions(opts *options) error {
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.bufferSizeSet && opts.initialBufferSize <= 0 {
		return ErrInvalidBufferSize
	}

	if opts.initialBufferSize <= 0 {
		opts.initialBufferSize = defaultInitialBufferSize
	}

	if opts.onFrame == nil {
		return ErrInvalidOnFrame
	}

	if opts.onDecodeError == nil {
		logger := opts.logger
		opts.onDecodeError = func(err error) {
			logger.Error("frame decode error", "error", err)
		}
	}

	return nil
}

// checkConnOptions validates and sets default values for connection
// options, on top of the assembler-level checks.
func checkConnOptions(opts *options) error {
	if err := checkOptions(opts); err != nil {
		return err
	}

	if opts.maxFrameSize <= 0 {
		opts.maxFrameSize = defaultMaxFrameSize
	}

	if opts.readChunkSize <= 0 {
		opts.readChunkSize = defaultReadChunkSize
	}

	if opts.sendQueueSize <= 0 {
		opts.sendQueueSize = defaultSendQueueSize
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = time.Second * 30
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	return nil
}
