package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"

	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres accounts.Store
func New(db *sql.DB) accounts.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements accounts.Store.Get
func (s *store) Get(ctx context.Context, address ed25519.PublicKey) (*accounts.Account, error) {
	model, err := dbGet(ctx, s.db, base58.Encode(address))
	if err != nil {
		return nil, err
	}
	return fromModel(model)
}

// Save implements accounts.Store.Save
func (s *store) Save(ctx context.Context, records ...*accounts.Account) error {
	models := make([]*model, len(records))
	for i, record := range records {
		m, err := toModel(record)
		if err != nil {
			return err
		}
		models[i] = m
	}

	return dbSaveAll(ctx, s.db, models)
}

// Count implements accounts.Store.Count
func (s *store) Count(ctx context.Context) (uint64, error) {
	return dbCount(ctx, s.db)
}
