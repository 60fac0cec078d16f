package rpc_test

import (
	"testing"

	"github.com/thebeyondr/sekiva/lib/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLittleEndian(t *testing.T) {
	w := rpc.NewWriter()
	w.WriteU32(0x01020304)
	w.WriteU64(1)
	w.WriteString("Yes")
	assert.Equal(t, []byte{
		0x04, 0x03, 0x02, 0x01,
		1, 0, 0, 0, 0, 0, 0, 0,
		3, 0, 0, 0, 'Y', 'e', 's',
	}, w.Bytes())
}

func TestInvocationHeader(t *testing.T) {
	w := rpc.NewInvocation()
	w.WriteU8(7)
	b := w.Bytes()
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F, 7}, b)

	r, err := rpc.OpenInvocation(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), r.ReadU8())
	assert.NoError(t, r.Finish())

	_, err = rpc.OpenInvocation([]byte{0xFF, 0xFF, 0x0F})
	assert.ErrorIs(t, err, rpc.ErrMissingHeader)
}

func TestVecAndOption(t *testing.T) {
	w := rpc.NewWriter()
	rpc.WriteVec(w, []string{"a", "bc"}, (*rpc.Writer).WriteString)
	five := uint64(5)
	rpc.WriteOption(w, &five, (*rpc.Writer).WriteU64)
	rpc.WriteOption[uint64](w, nil, (*rpc.Writer).WriteU64)

	r := rpc.NewReader(w.Bytes())
	assert.Equal(t, []string{"a", "bc"}, rpc.ReadVec(r, (*rpc.Reader).ReadString))
	got := rpc.ReadOption(r, (*rpc.Reader).ReadU64)
	require.NotNil(t, got)
	assert.Equal(t, uint64(5), *got)
	assert.Nil(t, rpc.ReadOption(r, (*rpc.Reader).ReadU64))
	assert.NoError(t, r.Finish())
}

func TestShortnameLeb128(t *testing.T) {
	tests := []struct {
		sn   uint32
		want []byte
	}{
		{0x01, []byte{0x01}},
		{0x60, []byte{0x60}},
		{0x80, []byte{0x80, 0x01}},
		{300, []byte{0xAC, 0x02}},
	}
	for _, tt := range tests {
		w := rpc.NewWriter()
		w.WriteShortname(tt.sn)
		assert.Equal(t, tt.want, w.Bytes(), "shortname %d", tt.sn)
		r := rpc.NewReader(tt.want)
		assert.Equal(t, tt.sn, r.ReadShortname())
		assert.NoError(t, r.Finish())
	}
}

func TestReaderErrorsAreSticky(t *testing.T) {
	r := rpc.NewReader([]byte{10, 0, 0, 0, 'a'})
	assert.Equal(t, "", r.ReadString())
	assert.ErrorIs(t, r.Err(), rpc.ErrUnexpectedEOF)
	assert.Equal(t, uint32(0), r.ReadU32())
	assert.ErrorIs(t, r.Finish(), rpc.ErrUnexpectedEOF)
}

func TestReaderRejectsTrailingBytes(t *testing.T) {
	r := rpc.NewReader([]byte{1, 2})
	r.ReadU8()
	assert.ErrorIs(t, r.Finish(), rpc.ErrTrailingBytes)
}

func TestReaderRejectsBadBool(t *testing.T) {
	r := rpc.NewReader([]byte{2})
	r.ReadBool()
	assert.ErrorIs(t, r.Err(), rpc.ErrInvalidBool)
}

func TestVecCountLargerThanInput(t *testing.T) {
	r := rpc.NewReader([]byte{0xFF, 0xFF, 0xFF, 0x00})
	assert.Nil(t, rpc.ReadVec(r, (*rpc.Reader).ReadU8))
	assert.ErrorIs(t, r.Err(), rpc.ErrUnexpectedEOF)
}
