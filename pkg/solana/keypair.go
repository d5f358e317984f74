package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// LoadKeypair reads a keypair file in the Solana CLI format: a JSON array
// holding the 64 bytes of the ed25519 private key.
func LoadKeypair(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keypair %s", path)
	}

	return ParseKeypair(raw)
}

// ParseKeypair parses the contents of a Solana CLI keypair file.
func ParseKeypair(raw []byte) (ed25519.PrivateKey, error) {
	var b []byte
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, errors.Wrap(err, "invalid keypair json")
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid keypair length: %d", len(ints))
	}

	b = make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("invalid keypair byte at %d: %d", i, v)
		}
		b[i] = byte(v)
	}

	key := ed25519.PrivateKey(b)
	derived := ed25519.NewKeyFromSeed(key.Seed())
	if !derived.Equal(key) {
		return nil, errors.New("keypair public key does not match its seed")
	}

	return key, nil
}

// MarshalKeypair encodes key in the Solana CLI keypair format.
func MarshalKeypair(key ed25519.PrivateKey) ([]byte, error) {
	ints := make([]int, len(key))
	for i, v := range key {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}
