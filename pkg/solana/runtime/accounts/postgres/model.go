package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"

	pgutil "github.com/code-payments/square-program/pkg/database/postgres"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
)

const (
	tableName = "square__core_account"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address    string `db:"address"`
	Owner      string `db:"owner"`
	Lamports   uint64 `db:"lamports"`
	Executable bool   `db:"executable"`
	Data       []byte `db:"data"`
	Slot       uint64 `db:"slot"`
}

func toModel(obj *accounts.Account) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Address:    base58.Encode(obj.Address),
		Owner:      base58.Encode(obj.Owner),
		Lamports:   obj.Lamports,
		Executable: obj.Executable,
		Data:       data,
		Slot:       obj.Slot,
	}, nil
}

func fromModel(obj *model) (*accounts.Account, error) {
	address, err := base58.Decode(obj.Address)
	if err != nil {
		return nil, err
	}

	owner, err := base58.Decode(obj.Owner)
	if err != nil {
		return nil, err
	}

	return &accounts.Account{
		Address:    ed25519.PublicKey(address),
		Owner:      ed25519.PublicKey(owner),
		Lamports:   obj.Lamports,
		Executable: obj.Executable,
		Data:       obj.Data,
		Slot:       obj.Slot,
	}, nil
}

func (m *model) dbSave(ctx context.Context, tx *sqlx.Tx) error {
	if m.Lamports == 0 {
		query := `DELETE FROM ` + tableName + `
			WHERE address = $1`

		_, err := tx.ExecContext(ctx, query, m.Address)
		return err
	}

	query := `INSERT INTO ` + tableName + `
		(address, owner, lamports, executable, data, slot)
		VALUES ($1, $2, $3, $4, $5, $6)

		ON CONFLICT (address)
		DO UPDATE
			SET owner = $2, lamports = $3, executable = $4, data = $5, slot = $6
			WHERE ` + tableName + `.address = $1

		RETURNING
			id, address, owner, lamports, executable, data, slot`

	return tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Executable,
		m.Data,
		m.Slot,
	).StructScan(m)
}

func dbSaveAll(ctx context.Context, db *sqlx.DB, models []*model) error {
	return pgutil.ExecuteRetryable(func() error {
		return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
			for _, m := range models {
				if err := m.dbSave(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT id, address, owner, lamports, executable, data, slot FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, accounts.ErrAccountNotFound)
	}
	return res, nil
}

func dbCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName
	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}
	return res, nil
}
