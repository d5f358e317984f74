package accounts

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
)

// Account is the persisted state of an on-chain account.
type Account struct {
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte

	// Slot is the slot at which the account was last written.
	Slot uint64
}

func (a *Account) Validate() error {
	if len(a.Address) != ed25519.PublicKeySize {
		return errors.New("address is invalid")
	}

	if len(a.Owner) != ed25519.PublicKeySize {
		return errors.New("owner is invalid")
	}

	return nil
}

func (a *Account) Clone() Account {
	return Account{
		Address:    clone(a.Address),
		Owner:      clone(a.Owner),
		Lamports:   a.Lamports,
		Executable: a.Executable,
		Data:       clone(a.Data),
		Slot:       a.Slot,
	}
}

func (a *Account) CopyTo(dst *Account) {
	cloned := a.Clone()
	*dst = cloned
}

// Equals compares account state, ignoring the slot it was written at.
func (a *Account) Equals(other *Account) bool {
	return bytes.Equal(a.Address, other.Address) &&
		bytes.Equal(a.Owner, other.Owner) &&
		a.Lamports == other.Lamports &&
		a.Executable == other.Executable &&
		bytes.Equal(a.Data, other.Data)
}

func clone[T ~[]byte](b T) T {
	if b == nil {
		return nil
	}
	cloned := make(T, len(b))
	copy(cloned, b)
	return cloned
}

type Store interface {
	// Get returns the account at address. ErrAccountNotFound is returned if
	// the account has never been saved, or was last saved without lamports.
	Get(ctx context.Context, address ed25519.PublicKey) (*Account, error)

	// Save atomically writes every account. Accounts without lamports are
	// removed.
	Save(ctx context.Context, records ...*Account) error

	// Count returns the number of live accounts.
	Count(ctx context.Context) (uint64, error)
}
