package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/testutil"
)

func TestAccountInfo_Borrows(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	account := NewAccountInfo(keys[0], keys[1], 1, []byte{1, 2, 3, 4})
	assert.Equal(t, 4, account.DataLen())

	// Shared views may nest.
	err := account.ViewData(func(outer []byte) error {
		return account.ViewData(func(inner []byte) error {
			assert.Equal(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)

	// Updates conflict with views in both directions.
	err = account.ViewData(func(_ []byte) error {
		return account.UpdateData(func(_ []byte) error {
			return nil
		})
	})
	assert.Equal(t, solana.ErrAccountBorrowFailed, err)

	err = account.UpdateData(func(_ []byte) error {
		return account.ViewData(func(_ []byte) error {
			return nil
		})
	})
	assert.Equal(t, solana.ErrAccountBorrowFailed, err)

	err = account.UpdateData(func(_ []byte) error {
		return account.UpdateData(func(_ []byte) error {
			return nil
		})
	})
	assert.Equal(t, solana.ErrAccountBorrowFailed, err)

	// Borrows are released once the callback returns.
	require.NoError(t, account.UpdateData(func(data []byte) error {
		data[0] = 9
		return nil
	}))
	require.NoError(t, account.ViewData(func(data []byte) error {
		assert.Equal(t, []byte{9, 2, 3, 4}, data)
		return nil
	}))
}

func TestAccountInfo_BorrowReleasedOnError(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	account := NewAccountInfo(keys[0], keys[1], 1, make([]byte, 4))

	expected := errors.New("failed")
	assert.Equal(t, expected, account.UpdateData(func(_ []byte) error {
		return expected
	}))
	assert.Equal(t, expected, account.ViewData(func(_ []byte) error {
		return expected
	}))

	assert.NoError(t, account.UpdateData(func(_ []byte) error {
		return nil
	}))
}

func TestAccountInfo_BorrowReleasedOnPanic(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	account := NewAccountInfo(keys[0], keys[1], 1, make([]byte, 4))

	assert.Panics(t, func() {
		_ = account.UpdateData(func(_ []byte) error {
			panic("boom")
		})
	})

	assert.NoError(t, account.UpdateData(func(_ []byte) error {
		return nil
	}))
}

func TestAccountInfo_SnapshotRestore(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)
	account := NewAccountInfo(keys[0], keys[1], 10, []byte{1, 2})

	snapshot := account.snapshot()

	account.Lamports = 20
	account.Owner = keys[2]
	require.NoError(t, account.UpdateData(func(data []byte) error {
		data[0] = 0xff
		return nil
	}))
	assert.EqualValues(t, 1, snapshot.Data[0])

	account.restore(snapshot)
	assert.EqualValues(t, 10, account.Lamports)
	assert.Equal(t, keys[1], account.Owner)
	require.NoError(t, account.ViewData(func(data []byte) error {
		assert.Equal(t, []byte{1, 2}, data)
		return nil
	}))

	require.NoError(t, account.resize(8))
	assert.Equal(t, 8, account.DataLen())

	err := account.ViewData(func(_ []byte) error {
		return account.resize(1)
	})
	assert.Equal(t, solana.ErrAccountBorrowOutstanding, err)
}
