package framer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func TestSink_CopyFromReader(t *testing.T) {
	a, rec := newTestAssembler(t, NewUInt32BEExtractor())
	sink := NewSink(a)

	want := [][]byte{
		frameUInt32BE([]byte("hello")),
		frameUInt32BE([]byte("world")),
	}

	var stream []byte
	for _, f := range want {
		stream = append(stream, f...)
	}

	// OneByteReader forces the worst-case chunking.
	n, err := io.Copy(sink, iotest.OneByteReader(bytes.NewReader(stream)))
	if err != nil {
		t.Fatalf("io.Copy failed: %v", err)
	}
	if n != int64(len(stream)) {
		t.Errorf("copied %d bytes, want %d", n, len(stream))
	}
	a.Close()

	frames := rec.Frames()
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if !bytes.Equal(frames[i], want[i]) {
			t.Errorf("frame %d = %v, want %v", i, frames[i], want[i])
		}
	}
}

func TestSink_DecodeErrorSurfaced(t *testing.T) {
	a, _ := newTestAssembler(t, NewInt32BEExtractor())
	sink := NewSink(a)
	defer a.Close()

	_, err := io.Copy(sink, bytes.NewReader([]byte{0, 0, 0, 1}))
	if err == nil {
		t.Fatal("expected an error from io.Copy")
	}
	if !errors.Is(err, ErrInvalidMessageSize) {
		t.Errorf("error %v does not wrap ErrInvalidMessageSize", err)
	}

	// The sink keeps reporting the decode error for later chunks.
	_, err = sink.Write([]byte{0, 0, 0, 4})
	if !errors.Is(err, ErrInvalidMessageSize) {
		t.Errorf("error %v does not wrap ErrInvalidMessageSize", err)
	}
}

func TestSink_ClosedAssembler(t *testing.T) {
	a, _ := newTestAssembler(t, NewUInt8Extractor())
	sink := NewSink(a)

	a.Close()

	n, err := sink.Write([]byte{1})
	if n != 0 {
		t.Errorf("Write reported %d bytes, want 0", n)
	}
	if err != ErrAssemblerClosed {
		t.Errorf("expected ErrAssemblerClosed, got %v", err)
	}
}
