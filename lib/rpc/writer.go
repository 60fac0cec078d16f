package rpc

import (
	"bytes"
	"encoding/binary"
)

// Marks a payload as raw invocation data (constructor and action arguments)
var RawInvocationHeader = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}

type Writable interface {
	WriteRPC(w *Writer)
}

type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

// Starts a writer that already carries the raw invocation header.
func NewInvocation() *Writer {
	w := &Writer{}
	w.WriteFixed(RawInvocationHeader)
	return w
}

func (w *Writer) Bytes() []byte {
	return bytes.Clone(w.buf.Bytes())
}

func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) WriteU8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) WriteI8(v int8) {
	w.buf.WriteByte(byte(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (w *Writer) WriteU32(v uint32) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

func (w *Writer) WriteU64(v uint64) {
	w.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

// u32 length followed by the UTF-8 bytes
func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// u32 length followed by the bytes
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf.Write(b)
}

// Raw bytes without a length prefix
func (w *Writer) WriteFixed(b []byte) {
	w.buf.Write(b)
}

// Shortnames are unsigned LEB128
func (w *Writer) WriteShortname(sn uint32) {
	w.buf.Write(binary.AppendUvarint(nil, uint64(sn)))
}

func (w *Writer) Write(v Writable) {
	v.WriteRPC(w)
}

func WriteVec[T any](w *Writer, items []T, write func(*Writer, T)) {
	w.WriteU32(uint32(len(items)))
	for _, item := range items {
		write(w, item)
	}
}

func WriteOption[T any](w *Writer, v *T, write func(*Writer, T)) {
	if v == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	write(w, *v)
}

// Primitive wrappers so builders can take typed arguments

type String string

func (s String) WriteRPC(w *Writer) { w.WriteString(string(s)) }

type Bytes []byte

func (b Bytes) WriteRPC(w *Writer) { w.WriteBytes(b) }

type U8 uint8

func (v U8) WriteRPC(w *Writer) { w.WriteU8(uint8(v)) }

type U32 uint32

func (v U32) WriteRPC(w *Writer) { w.WriteU32(uint32(v)) }

type U64 uint64

func (v U64) WriteRPC(w *Writer) { w.WriteU64(uint64(v)) }

type Bool bool

func (v Bool) WriteRPC(w *Writer) { w.WriteBool(bool(v)) }

type Raw []byte

func (r Raw) WriteRPC(w *Writer) { w.WriteFixed(r) }
