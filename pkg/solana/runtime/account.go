package runtime

import (
	"crypto/ed25519"
	"sync"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
)

// AccountInfo is a program's view of an account for the duration of one
// instruction. The data buffer is only reachable through scoped borrows.
type AccountInfo struct {
	Key        ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
	IsSigner   bool
	IsWritable bool

	mu      sync.Mutex
	data    []byte
	readers int
	writer  bool
}

// NewAccountInfo returns an AccountInfo over data. The buffer is used in
// place, not copied.
func NewAccountInfo(key, owner ed25519.PublicKey, lamports uint64, data []byte) *AccountInfo {
	return &AccountInfo{
		Key:      key,
		Owner:    owner,
		Lamports: lamports,
		data:     data,
	}
}

func newAccountInfoFromRecord(record *accounts.Account, isSigner, isWritable bool) *AccountInfo {
	cloned := record.Clone()
	return &AccountInfo{
		Key:        cloned.Address,
		Owner:      cloned.Owner,
		Lamports:   cloned.Lamports,
		Executable: cloned.Executable,
		IsSigner:   isSigner,
		IsWritable: isWritable,
		data:       cloned.Data,
	}
}

func (a *AccountInfo) DataLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

// ViewData lends the data buffer to fn for reading. Any number of views may
// be outstanding, but not while an update is in progress.
func (a *AccountInfo) ViewData(fn func(data []byte) error) error {
	a.mu.Lock()
	if a.writer {
		a.mu.Unlock()
		return solana.ErrAccountBorrowFailed
	}
	a.readers++
	data := a.data
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.readers--
		a.mu.Unlock()
	}()

	return fn(data)
}

// UpdateData lends the data buffer to fn for writing. It fails if any other
// borrow is outstanding.
func (a *AccountInfo) UpdateData(fn func(data []byte) error) error {
	a.mu.Lock()
	if a.writer || a.readers > 0 {
		a.mu.Unlock()
		return solana.ErrAccountBorrowFailed
	}
	a.writer = true
	data := a.data
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.writer = false
		a.mu.Unlock()
	}()

	return fn(data)
}

// resize replaces the buffer with a zeroed one of size bytes. Only the
// system program reallocates.
func (a *AccountInfo) resize(size uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.writer || a.readers > 0 {
		return solana.ErrAccountBorrowOutstanding
	}
	a.data = make([]byte, size)
	return nil
}

func (a *AccountInfo) snapshot() *accounts.Account {
	a.mu.Lock()
	defer a.mu.Unlock()

	record := &accounts.Account{
		Address:    a.Key,
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Executable: a.Executable,
		Data:       a.data,
	}
	cloned := record.Clone()
	return &cloned
}

func (a *AccountInfo) restore(record *accounts.Account) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cloned := record.Clone()
	a.Owner = cloned.Owner
	a.Lamports = cloned.Lamports
	a.Executable = cloned.Executable
	a.data = cloned.Data
}
