// Package shortvec implements the compact-u16 length prefix used by the
// Solana wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxEncodedBytes is the widest encoding of a u16 (7 bits per byte).
const maxEncodedBytes = 3

var (
	ErrLengthOutOfRange = errors.Errorf("length must be within [0, %d]", math.MaxUint16)
	ErrOverflow         = errors.New("compact-u16 overflows a u16")
	ErrAlias            = errors.New("compact-u16 is not minimally encoded")
)

// EncodeLen writes length as a compact-u16 into w.
func EncodeLen(w io.Writer, length int) (n int, err error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, errors.Wrapf(ErrLengthOutOfRange, "invalid length %d", length)
	}

	var encoded [maxEncodedBytes]byte
	for {
		b := byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			encoded[n] = b
			n++
			break
		}

		encoded[n] = b | 0x80
		n++
	}

	return w.Write(encoded[:n])
}

// DecodeLen reads a compact-u16 length from r. Encodings wider than
// maxEncodedBytes, values above math.MaxUint16 and trailing zero bytes are
// rejected, so every length has exactly one accepted encoding.
func DecodeLen(r io.Reader) (int, error) {
	var val int
	var b [1]byte

	for i := 0; i < maxEncodedBytes; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}

		if i > 0 && b[0] == 0 {
			return 0, ErrAlias
		}

		val |= int(b[0]&0x7f) << (i * 7)
		if val > math.MaxUint16 {
			return 0, ErrOverflow
		}

		if b[0]&0x80 == 0 {
			return val, nil
		}
	}

	return 0, ErrOverflow
}
