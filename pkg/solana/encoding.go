package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/square-program/pkg/solana/shortvec"
)

// wireWriter appends the legacy wire format to a buffer. Writes to a
// bytes.Buffer only fail on lengths shortvec can't represent, which
// NewTransaction never produces.
type wireWriter struct {
	bytes.Buffer
}

func (w *wireWriter) vec(n int) {
	_, _ = shortvec.EncodeLen(&w.Buffer, n)
}

func (w *wireWriter) bytesVec(b []byte) {
	w.vec(len(b))
	_, _ = w.Write(b)
}

// wireReader consumes the legacy wire format, keeping the first error and
// turning every later read into a no-op.
type wireReader struct {
	r   *bytes.Reader
	err error
}

func newWireReader(b []byte) *wireReader {
	return &wireReader{r: bytes.NewReader(b)}
}

func (r *wireReader) fail(err error, format string, args ...interface{}) {
	if r.err == nil && err != nil {
		r.err = errors.Wrapf(err, format, args...)
	}
}

func (r *wireReader) u8(what string) byte {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	r.fail(err, "failed to read %s", what)
	return b
}

func (r *wireReader) vec(what string) int {
	if r.err != nil {
		return 0
	}
	n, err := shortvec.DecodeLen(r.r)
	r.fail(err, "failed to read %s length", what)
	return n
}

func (r *wireReader) full(dst []byte, what string) {
	if r.err != nil {
		return
	}
	_, err := io.ReadFull(r.r, dst)
	r.fail(err, "failed to read %s", what)
}

func (r *wireReader) bytesVec(what string) []byte {
	n := r.vec(what)
	if r.err != nil {
		return nil
	}
	if n > r.r.Len() {
		r.err = errors.Errorf("%s length %d exceeds remaining %d bytes", what, n, r.r.Len())
		return nil
	}

	b := make([]byte, n)
	r.full(b, what)
	return b
}

func (r *wireReader) rest() []byte {
	b := make([]byte, r.r.Len())
	_, _ = r.r.Read(b)
	return b
}

func (t Transaction) Marshal() []byte {
	var w wireWriter

	w.vec(len(t.Signatures))
	for _, s := range t.Signatures {
		_, _ = w.Write(s[:])
	}
	_, _ = w.Write(t.Message.Marshal())

	return w.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := newWireReader(b)

	n := r.vec("signatures")
	if r.err == nil && n*ed25519.SignatureSize > len(b) {
		return errors.Errorf("signature count %d exceeds transaction size", n)
	}

	t.Signatures = make([]Signature, n)
	for i := range t.Signatures {
		r.full(t.Signatures[i][:], "signature")
	}
	if r.err != nil {
		return r.err
	}

	return t.Message.Unmarshal(r.rest())
}

func (m Message) Marshal() []byte {
	var w wireWriter

	_ = w.WriteByte(m.Header.NumSignatures)
	_ = w.WriteByte(m.Header.NumReadonlySigned)
	_ = w.WriteByte(m.Header.NumReadOnly)

	w.vec(len(m.Accounts))
	for _, a := range m.Accounts {
		_, _ = w.Write(a)
	}

	_, _ = w.Write(m.RecentBlockhash[:])

	w.vec(len(m.Instructions))
	for _, i := range m.Instructions {
		_ = w.WriteByte(i.ProgramIndex)
		w.bytesVec(i.Accounts)
		w.bytesVec(i.Data)
	}

	return w.Bytes()
}

// Unmarshal decodes a legacy message. Versioned messages, flagged by the
// high bit of the first byte, are rejected.
func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&0x80 != 0 {
		return errors.New("versioned messages not supported")
	}

	r := newWireReader(b)

	m.Header.NumSignatures = r.u8("num signatures")
	m.Header.NumReadonlySigned = r.u8("num readonly signatures")
	m.Header.NumReadOnly = r.u8("num readonly")

	numAccounts := r.vec("accounts")
	if r.err == nil && numAccounts*ed25519.PublicKeySize > len(b) {
		return errors.Errorf("account count %d exceeds message size", numAccounts)
	}
	m.Accounts = make([]ed25519.PublicKey, numAccounts)
	for i := range m.Accounts {
		m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		r.full(m.Accounts[i], "account")
	}

	r.full(m.RecentBlockhash[:], "recent blockhash")

	numInstructions := r.vec("instructions")
	if r.err != nil {
		return r.err
	}

	m.Instructions = make([]CompiledInstruction, 0, numInstructions)
	for i := 0; i < numInstructions; i++ {
		c := CompiledInstruction{
			ProgramIndex: r.u8("program index"),
			Accounts:     r.bytesVec("instruction accounts"),
			Data:         r.bytesVec("instruction data"),
		}
		if r.err != nil {
			return errors.Wrapf(r.err, "instruction %d", i)
		}

		if int(c.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("instruction %d: program index %d out of range", i, c.ProgramIndex)
		}
		for _, index := range c.Accounts {
			if int(index) >= len(m.Accounts) {
				return errors.Errorf("instruction %d: account index %d out of range", i, index)
			}
		}

		m.Instructions = append(m.Instructions, c)
	}

	return nil
}
