package framer

import "encoding/binary"

// HeaderExtractor is the strategy that describes the length prefix of a
// framed protocol: how many bytes the header occupies, how to derive the
// total frame size from those bytes, and which sizes are acceptable.
//
// Implementations must treat ExtractMessageSize as a pure function of its
// input and keep HeaderByteCount constant for the lifetime of the instance.
type HeaderExtractor interface {
	// HeaderByteCount returns the fixed number of bytes forming the header.
	HeaderByteCount() int
	// ExtractMessageSize decodes the total frame size, header included,
	// from the first HeaderByteCount bytes of header. The slice is always
	// at least HeaderByteCount bytes long.
	ExtractMessageSize(header []byte) int
	// ValidateMessageSize reports whether a decoded size is acceptable.
	// A false return is a protocol error and permanently shuts down the
	// assembler the extractor is bound to.
	ValidateMessageSize(size int) bool
}

// DefaultValidateSize is the size policy used by the standard extractors:
// a frame must be at least large enough to contain its own header.
// Custom extractors can call it from their ValidateMessageSize.
func DefaultValidateSize(headerByteCount, size int) bool {
	return size >= headerByteCount
}

// fixedExtractor decodes a fixed-width integer length prefix.
type fixedExtractor struct {
	width  int
	decode func(header []byte) int
}

func (e fixedExtractor) HeaderByteCount() int {
	return e.width
}

func (e fixedExtractor) ExtractMessageSize(header []byte) int {
	return e.decode(header)
}

func (e fixedExtractor) ValidateMessageSize(size int) bool {
	return DefaultValidateSize(e.width, size)
}

// NewInt8Extractor returns an extractor for a 1-byte signed length prefix.
func NewInt8Extractor() HeaderExtractor {
	return fixedExtractor{1, func(b []byte) int { return int(int8(b[0])) }}
}

// NewUInt8Extractor returns an extractor for a 1-byte unsigned length prefix.
func NewUInt8Extractor() HeaderExtractor {
	return fixedExtractor{1, func(b []byte) int { return int(b[0]) }}
}

// NewInt16BEExtractor returns an extractor for a 2-byte signed big-endian
// length prefix.
func NewInt16BEExtractor() HeaderExtractor {
	return fixedExtractor{2, func(b []byte) int { return int(int16(binary.BigEndian.Uint16(b))) }}
}

// NewUInt16BEExtractor returns an extractor for a 2-byte unsigned big-endian
// length prefix.
func NewUInt16BEExtractor() HeaderExtractor {
	return fixedExtractor{2, func(b []byte) int { return int(binary.BigEndian.Uint16(b)) }}
}

// NewInt16LEExtractor returns an extractor for a 2-byte signed little-endian
// length prefix.
func NewInt16LEExtractor() HeaderExtractor {
	return fixedExtractor{2, func(b []byte) int { return int(int16(binary.LittleEndian.Uint16(b))) }}
}

// NewUInt16LEExtractor returns an extractor for a 2-byte unsigned
// little-endian length prefix.
func NewUInt16LEExtractor() HeaderExtractor {
	return fixedExtractor{2, func(b []byte) int { return int(binary.LittleEndian.Uint16(b)) }}
}

// NewInt32BEExtractor returns an extractor for a 4-byte signed big-endian
// length prefix.
func NewInt32BEExtractor() HeaderExtractor {
	return fixedExtractor{4, func(b []byte) int { return int(int32(binary.BigEndian.Uint32(b))) }}
}

// NewUInt32BEExtractor returns an extractor for a 4-byte unsigned big-endian
// length prefix.
func NewUInt32BEExtractor() HeaderExtractor {
	return fixedExtractor{4, func(b []byte) int { return int(int64(binary.BigEndian.Uint32(b))) }}
}

// NewInt32LEExtractor returns an extractor for a 4-byte signed little-endian
// length prefix.
func NewInt32LEExtractor() HeaderExtractor {
	return fixedExtractor{4, func(b []byte) int { return int(int32(binary.LittleEndian.Uint32(b))) }}
}

// NewUInt32LEExtractor returns an extractor for a 4-byte unsigned
// little-endian length prefix.
func NewUInt32LEExtractor() HeaderExtractor {
	return fixedExtractor{4, func(b []byte) int { return int(int64(binary.LittleEndian.Uint32(b))) }}
}
