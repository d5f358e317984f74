package shortvec

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownEncodings = []struct {
	length  int
	encoded []byte
}{
	{0x0, []byte{0x00}},
	{0x5, []byte{0x05}},
	{0x7f, []byte{0x7f}},
	{0x80, []byte{0x80, 0x01}},
	{0xff, []byte{0xff, 0x01}},
	{0x100, []byte{0x80, 0x02}},
	{0x3fff, []byte{0xff, 0x7f}},
	{0x4000, []byte{0x80, 0x80, 0x01}},
	{0x7fff, []byte{0xff, 0xff, 0x01}},
	{0xffff, []byte{0xff, 0xff, 0x03}},
}

func TestEncodeLen(t *testing.T) {
	for _, tc := range knownEncodings {
		buf := &bytes.Buffer{}
		n, err := EncodeLen(buf, tc.length)
		require.NoError(t, err)
		assert.Equal(t, len(tc.encoded), n, "length %#x", tc.length)
		assert.Equal(t, tc.encoded, buf.Bytes(), "length %#x", tc.length)
	}
}

func TestEncodeLen_OutOfRange(t *testing.T) {
	for _, length := range []int{-1, math.MinInt32, math.MaxUint16 + 1, math.MaxInt32} {
		buf := &bytes.Buffer{}
		n, err := EncodeLen(buf, length)
		assert.True(t, errors.Is(err, ErrLengthOutOfRange), "length %d", length)
		assert.Zero(t, n)
		assert.Zero(t, buf.Len())
	}
}

func TestDecodeLen(t *testing.T) {
	for _, tc := range knownEncodings {
		// Bytes past the prefix belong to the caller.
		r := bytes.NewReader(append(append([]byte{}, tc.encoded...), 0xaa))

		length, err := DecodeLen(r)
		require.NoError(t, err)
		assert.Equal(t, tc.length, length)
		assert.Equal(t, 1, r.Len())
	}
}

func TestDecodeLen_Widths(t *testing.T) {
	// Each length decodes from exactly the bytes its encoding used.
	for _, length := range []int{0, 0x7f, 0x80, 0x3fff, 0x4000, math.MaxUint16} {
		buf := &bytes.Buffer{}
		n, err := EncodeLen(buf, length)
		require.NoError(t, err)

		decoded, err := DecodeLen(buf)
		require.NoError(t, err)
		assert.Equal(t, length, decoded)
		assert.Zero(t, buf.Len(), "%d of %d bytes unread", buf.Len(), n)
	}
}

func TestDecodeLen_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name     string
		encoded  []byte
		expected error
	}{
		{"empty", nil, io.EOF},
		{"truncated", []byte{0x80}, io.EOF},
		{"truncated third byte", []byte{0x80, 0x80}, io.EOF},
		{"alias of zero", []byte{0x80, 0x00}, ErrAlias},
		{"alias of 0x7f", []byte{0xff, 0x80, 0x00}, ErrAlias},
		{"third byte too wide", []byte{0xff, 0xff, 0x04}, ErrOverflow},
		{"continuation on third byte", []byte{0x80, 0x80, 0x80, 0x01}, ErrOverflow},
	} {
		_, err := DecodeLen(bytes.NewReader(tc.encoded))
		assert.True(t, errors.Is(err, tc.expected), "%s: %v", tc.name, err)
	}
}
