package cache

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/square-program/pkg/cache"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
)

// Fixed weight charged per cached account on top of its data length.
const recordOverhead = 128

type store struct {
	backing accounts.Store
	cache   cache.Cache
}

// New returns an accounts.Store that serves reads of recently used accounts
// from memory. Writes go through to backing before the cache is updated.
// budget bounds the cached data in bytes.
func New(backing accounts.Store, budget int) accounts.Store {
	return &store{
		backing: backing,
		cache:   cache.New(budget),
	}
}

// Get implements accounts.Store.Get
func (s *store) Get(ctx context.Context, address ed25519.PublicKey) (*accounts.Account, error) {
	if cached, ok := s.cache.Retrieve(string(address)); ok {
		cloned := cached.(*accounts.Account).Clone()
		return &cloned, nil
	}

	record, err := s.backing.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	s.insert(record)
	return record, nil
}

// Save implements accounts.Store.Save
func (s *store) Save(ctx context.Context, records ...*accounts.Account) error {
	if err := s.backing.Save(ctx, records...); err != nil {
		// Nothing cached for a failed batch is trusted.
		for _, record := range records {
			s.cache.Remove(string(record.Address))
		}
		return err
	}

	for _, record := range records {
		if record.Lamports == 0 {
			s.cache.Remove(string(record.Address))
			continue
		}
		s.insert(record)
	}
	return nil
}

// Count implements accounts.Store.Count
func (s *store) Count(ctx context.Context) (uint64, error) {
	return s.backing.Count(ctx)
}

func (s *store) insert(record *accounts.Account) {
	cloned := record.Clone()
	s.cache.Insert(string(record.Address), &cloned, recordOverhead+len(cloned.Data))
}
