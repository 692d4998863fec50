package framer

import (
	"testing"
	"time"
)

func TestOnFrameOption(t *testing.T) {
	called := false
	onFrame := func(frame []byte) {
		called = true
	}
	opt := OnFrameOption(onFrame)

	var opts options
	opt(&opts)

	if opts.onFrame == nil {
		t.Fatal("onFrame is nil")
	}

	// Call to verify it's the right function
	opts.onFrame(nil)
	if !called {
		t.Error("onFrame callback not called")
	}
}

func TestOnDecodeErrorOption(t *testing.T) {
	called := false
	onDecodeError := func(err error) {
		called = true
	}
	opt := OnDecodeErrorOption(onDecodeError)

	var opts options
	opt(&opts)

	if opts.onDecodeError == nil {
		t.Fatal("onDecodeError is nil")
	}

	opts.onDecodeError(nil)
	if !called {
		t.Error("onDecodeError callback not called")
	}
}

func TestOnErrorOption(t *testing.T) {
	called := false
	onError := func(err error) ErrorAction {
		called = true
		return Disconnect
	}
	opt := OnErrorOption(onError)

	var opts options
	opt(&opts)

	if opts.onError == nil {
		t.Fatal("onError is nil")
	}

	opts.onError(nil)
	if !called {
		t.Error("onError callback not called")
	}
}

func TestInitialBufferSizeOption(t *testing.T) {
	opt := InitialBufferSizeOption(100)

	var opts options
	opt(&opts)

	if opts.initialBufferSize != 100 {
		t.Errorf("initialBufferSize = %d, want 100", opts.initialBufferSize)
	}
	if !opts.bufferSizeSet {
		t.Error("bufferSizeSet not marked")
	}
}

func TestMaxFrameSizeOption(t *testing.T) {
	opt := MaxFrameSizeOption(4096)

	var opts options
	opt(&opts)

	if opts.maxFrameSize != 4096 {
		t.Errorf("maxFrameSize = %d, want 4096", opts.maxFrameSize)
	}
}

func TestReadChunkSizeOption(t *testing.T) {
	opt := ReadChunkSizeOption(512)

	var opts options
	opt(&opts)

	if opts.readChunkSize != 512 {
		t.Errorf("readChunkSize = %d, want 512", opts.readChunkSize)
	}
}

func TestSendQueueSizeOption(t *testing.T) {
	opt := SendQueueSizeOption(32)

	var opts options
	opt(&opts)

	if opts.sendQueueSize != 32 {
		t.Errorf("sendQueueSize = %d, want 32", opts.sendQueueSize)
	}
}

func TestIdleTimeoutOption(t *testing.T) {
	timeout := time.Minute * 5
	opt := IdleTimeoutOption(timeout)

	var opts options
	opt(&opts)

	if opts.idleTimeout != timeout {
		t.Errorf("idleTimeout = %v, want %v", opts.idleTimeout, timeout)
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var opts options
	opt(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := &options{
		onFrame: func([]byte) {},
	}

	err := checkOptions(opts)
	if err != nil {
		t.Fatalf("checkOptions failed: %v", err)
	}

	if opts.initialBufferSize != defaultInitialBufferSize {
		t.Errorf("initialBufferSize = %d, want %d", opts.initialBufferSize, defaultInitialBufferSize)
	}

	if opts.onDecodeError == nil {
		t.Error("onDecodeError should have default value")
	}

	if opts.logger == nil {
		t.Error("logger should have default value")
	}
}

func TestCheckOptions_MissingOnFrame(t *testing.T) {
	opts := &options{}

	if err := checkOptions(opts); err != ErrInvalidOnFrame {
		t.Errorf("expected ErrInvalidOnFrame, got %v", err)
	}
}

func TestCheckOptions_InvalidBufferSize(t *testing.T) {
	opts := &options{
		onFrame:           func([]byte) {},
		initialBufferSize: -1,
		bufferSizeSet:     true,
	}

	if err := checkOptions(opts); err != ErrInvalidBufferSize {
		t.Errorf("expected ErrInvalidBufferSize, got %v", err)
	}
}

func TestCheckConnOptions_DefaultValues(t *testing.T) {
	opts := &options{
		onFrame: func([]byte) {},
	}

	err := checkConnOptions(opts)
	if err != nil {
		t.Fatalf("checkConnOptions failed: %v", err)
	}

	if opts.maxFrameSize != defaultMaxFrameSize {
		t.Errorf("maxFrameSize = %d, want %d", opts.maxFrameSize, defaultMaxFrameSize)
	}

	if opts.readChunkSize != defaultReadChunkSize {
		t.Errorf("readChunkSize = %d, want %d", opts.readChunkSize, defaultReadChunkSize)
	}

	if opts.sendQueueSize != defaultSendQueueSize {
		t.Errorf("sendQueueSize = %d, want %d", opts.sendQueueSize, defaultSendQueueSize)
	}

	if opts.idleTimeout != time.Second*30 {
		t.Errorf("idleTimeout = %v, want %v", opts.idleTimeout, time.Second*30)
	}

	if opts.onError == nil {
		t.Fatal("onError should have default value")
	}

	// Default onError should return Disconnect
	if opts.onError(nil) != Disconnect {
		t.Error("default onError should return Disconnect")
	}
}

func TestOptions_MultipleOptions(t *testing.T) {
	logger := &mockLogger{}
	onFrame := func(frame []byte) {}
	onError := func(err error) ErrorAction { return Continue }
	idleTimeout := time.Second * 45

	var opts options
	all := []Option{
		OnFrameOption(onFrame),
		OnErrorOption(onError),
		IdleTimeoutOption(idleTimeout),
		InitialBufferSizeOption(50),
		MaxFrameSizeOption(8192),
		SendQueueSizeOption(8),
		ReadChunkSizeOption(256),
		LoggerOption(logger),
	}

	for _, opt := range all {
		opt(&opts)
	}

	if opts.onFrame == nil {
		t.Error("onFrame not set")
	}
	if opts.onError == nil {
		t.Error("onError not set")
	}
	if opts.idleTimeout != idleTimeout {
		t.Errorf("idleTimeout = %v, want %v", opts.idleTimeout, idleTimeout)
	}
	if opts.initialBufferSize != 50 {
		t.Errorf("initialBufferSize = %d, want 50", opts.initialBufferSize)
	}
	if opts.maxFrameSize != 8192 {
		t.Errorf("maxFrameSize = %d, want 8192", opts.maxFrameSize)
	}
	if opts.sendQueueSize != 8 {
		t.Errorf("sendQueueSize = %d, want 8", opts.sendQueueSize)
	}
	if opts.readChunkSize != 256 {
		t.Errorf("readChunkSize = %d, want 256", opts.readChunkSize)
	}
	if opts.logger != logger {
		t.Error("logger not set")
	}
}

func TestErrorAction(t *testing.T) {
	// Test Disconnect constant
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}

	// Test Continue constant
	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}
