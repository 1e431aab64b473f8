package objfile

import (
	"encoding/binary"
	"errors"
)

var ErrStreamEOF = errors.New("stream: unexpected end of data")

// Stream is a bounds-checked reader over object file structures.
type Stream struct {
	data []byte
	pos  int
	bo   binary.ByteOrder
}

// NewStream creates a stream over data using byte order bo.
func NewStream(data []byte, bo binary.ByteOrder) *Stream {
	return &Stream{data: data, bo: bo}
}

// Position returns the current read position.
func (s *Stream) Position() int { return s.pos }

// Remaining returns bytes left to read.
func (s *Stream) Remaining() int { return len(s.data) - s.pos }

// ReadBytes reads n bytes. The returned slice aliases the stream's data.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > s.Remaining() {
		return nil, ErrStreamEOF
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// ReadUint32 reads a uint32 in the stream's byte order.
func (s *Stream) ReadUint32() (uint32, error) {
	if s.Remaining() < 4 {
		return 0, ErrStreamEOF
	}
	v := s.bo.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// Align advances the position to the next multiple of n, clamped to the end.
func (s *Stream) Align(n int) {
	if n <= 1 {
		return
	}
	pos := (s.pos + n - 1) &^ (n - 1)
	if pos > len(s.data) {
		pos = len(s.data)
	}
	s.pos = pos
}
