package square

import (
	"io"

	bin "github.com/gagliardetto/binary"
)

// RecordSize is the encoded size of MathStuffSquare.
const RecordSize = 4

// MathStuffSquare is the record kept at the start of a square account's
// data. Bytes after the record are never read or written.
type MathStuffSquare struct {
	Square uint32
}

func (s MathStuffSquare) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint32(s.Square, bin.LE)
}

func (s *MathStuffSquare) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	s.Square, err = dec.ReadUint32(bin.LE)
	return err
}

// Decode reads the record from the prefix of data.
func Decode(data []byte) (*MathStuffSquare, error) {
	var s MathStuffSquare
	if err := s.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode writes the record into the prefix of dst. dst must have room for
// RecordSize bytes.
func (s MathStuffSquare) Encode(dst []byte) error {
	return s.MarshalWithEncoder(bin.NewBorshEncoder(&prefixWriter{buf: dst}))
}

// prefixWriter writes into a fixed buffer without growing it.
type prefixWriter struct {
	buf []byte
	off int
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	n := copy(w.buf[w.off:], p)
	w.off += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
