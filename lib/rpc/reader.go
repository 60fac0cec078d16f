package rpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrUnexpectedEOF   = errors.New("rpc: unexpected end of input")
	ErrTrailingBytes   = errors.New("rpc: trailing bytes after payload")
	ErrMissingHeader   = errors.New("rpc: missing raw invocation header")
	ErrInvalidUTF8     = errors.New("rpc: string is not valid UTF-8")
	ErrInvalidBool     = errors.New("rpc: invalid bool byte")
	ErrInvalidVariant  = errors.New("rpc: unknown enum discriminant")
	ErrShortnameLength = errors.New("rpc: shortname overflows u32")
)

// Reader keeps the first error it hits; every read after that is a no-op
// returning the zero value.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(b []byte) *Reader {
	return &Reader{data: b}
}

// Strips and checks the raw invocation header.
func OpenInvocation(b []byte) (*Reader, error) {
	if !bytes.HasPrefix(b, RawInvocationHeader) {
		return nil, ErrMissingHeader
	}
	return NewReader(b[len(RawInvocationHeader):]), nil
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	return r.data[r.pos:]
}

// Finish reports the sticky error, or an error if bytes are left over.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.data) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(r.data)-r.pos)
	}
	return nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = ErrUnexpectedEOF
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) ReadU8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadI8() int8 {
	return int8(r.ReadU8())
}

func (r *Reader) ReadBool() bool {
	v := r.ReadU8()
	switch v {
	case 0:
		return false
	case 1:
		return true
	}
	r.Fail(ErrInvalidBool)
	return false
}

func (r *Reader) ReadU16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadU32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadI32() int32 {
	return int32(r.ReadU32())
}

func (r *Reader) ReadU64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) ReadI64() int64 {
	return int64(r.ReadU64())
}

func (r *Reader) ReadString() string {
	n := r.ReadU32()
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.Fail(ErrInvalidUTF8)
		return ""
	}
	return string(b)
}

func (r *Reader) ReadBytes() []byte {
	n := r.ReadU32()
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

func (r *Reader) ReadFixed(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

func (r *Reader) ReadShortname() uint32 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.err = ErrUnexpectedEOF
		return 0
	}
	if v > 0xFFFFFFFF {
		r.err = ErrShortnameLength
		return 0
	}
	r.pos += n
	return uint32(v)
}

func ReadVec[T any](r *Reader, read func(*Reader) T) []T {
	n := r.ReadU32()
	if r.err != nil {
		return nil
	}
	// every element takes at least one byte
	if int(n) > r.Remaining() {
		r.Fail(ErrUnexpectedEOF)
		return nil
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v := read(r)
		if r.err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func ReadOption[T any](r *Reader, read func(*Reader) T) *T {
	if !r.ReadBool() {
		return nil
	}
	v := read(r)
	if r.err != nil {
		return nil
	}
	return &v
}
