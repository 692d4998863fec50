package framer

import (
	"io"

	"github.com/pkg/errors"
)

// ErrAssemblerClosed is returned by Sink.Write after the assembler was
// closed without a decode error.
var ErrAssemblerClosed = errors.New("assembler closed")

// Sink adapts an Assembler to io.Writer so any push-based byte source can
// terminate in it: io.Copy from a socket, file or pipe delivers each chunk
// straight to Consume.
type Sink struct {
	assembler *Assembler
}

var _ io.Writer = (*Sink)(nil)

// NewSink returns a Sink feeding the given assembler.
func NewSink(assembler *Assembler) *Sink {
	return &Sink{assembler: assembler}
}

// Write feeds one chunk to the assembler. A chunk is either handled as a
// whole or rejected as a whole: once the assembler has shut down, Write
// reports zero bytes written together with the assembler's last decode
// error, or ErrAssemblerClosed when it was closed without one.
func (s *Sink) Write(p []byte) (int, error) {
	if s.assembler.Consume(p) {
		return len(p), nil
	}

	if err := s.assembler.Err(); err != nil {
		return 0, errors.Wrap(err, "framer: chunk rejected")
	}

	return 0, ErrAssemblerClosed
}
