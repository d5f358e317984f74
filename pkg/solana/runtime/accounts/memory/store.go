package memory

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
)

type store struct {
	mu      sync.Mutex
	records map[string]*accounts.Account
}

// New returns a new in memory accounts.Store
func New() accounts.Store {
	return &store{
		records: make(map[string]*accounts.Account),
	}
}

// Get implements accounts.Store.Get
func (s *store) Get(_ context.Context, address ed25519.PublicKey) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[string(address)]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// Save implements accounts.Store.Save
func (s *store) Save(_ context.Context, records ...*accounts.Account) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if record.Lamports == 0 {
			delete(s.records, string(record.Address))
			continue
		}

		cloned := record.Clone()
		s.records[string(record.Address)] = &cloned
	}

	return nil
}

// Count implements accounts.Store.Count
func (s *store) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make(map[string]*accounts.Account)
	s.mu.Unlock()
}
