/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrMalformed is returned by every reader method that would run past
// the end of the underlying byte slice, per spec §4.A.
var ErrMalformed = errors.New("embervm: malformed class file")

// reader wraps a byte slice with a forward-only cursor and fixed-width
// big-endian reads. There is no seeking backward, matching the spec's
// single-pass class-file loader.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) u1() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrMalformed
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrMalformed
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrMalformed
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u8() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrMalformed
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i4() (int32, error) {
	v, err := r.u4()
	return int32(v), err
}

func (r *reader) i8() (int64, error) {
	v, err := r.u8()
	return int64(v), err
}

func (r *reader) f4() (float32, error) {
	v, err := r.u4()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) f8() (float64, error) {
	v, err := r.u8()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// bytes reads exactly n bytes and returns a copy (never an alias into
// the source slice, so callers may retain it past the source's life).
func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrMalformed
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}
