package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/square-program/pkg/retry"
)

const maxSerializationRetries = 5

var errSerializationFailure = errors.New("serialization failure")

// ExecuteRetryable executes fn, retrying it while postgres reports a
// serialization failure.
func ExecuteRetryable(fn func() error) error {
	var last error
	_, err := retry.Retry(
		func() error {
			last = fn()
			if IsSerializationFailure(last) {
				return errSerializationFailure
			}
			return last
		},
		retry.RetriableErrors(errSerializationFailure),
		retry.Limit(maxSerializationRetries),
	)
	if err == errSerializationFailure {
		return last
	}
	return err
}

// ExecuteInTx executes fn within a new DB transaction, committing when fn
// succeeds and rolling back otherwise.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: isolation,
	})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		// We always need to execute a Rollback() so sql.DB releases the connection.
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrap(rollbackErr, "failed to rollback transaction")
		}
		return err
	}

	return tx.Commit()
}
