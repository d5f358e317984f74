package tests

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
)

func RunTests(t *testing.T, s accounts.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s accounts.Store){
		testRoundTrip,
		testUpdate,
		testBatchSave,
		testZeroLamportsRemoves,
		testInvalidRecord,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s accounts.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		expected := newAccount(t, 1_000, []byte{0x2a, 0, 0, 0})

		_, err := s.Get(ctx, expected.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		cloned := expected.Clone()
		require.NoError(t, s.Save(ctx, expected))

		actual, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		// Mutating returned or saved records doesn't leak into the store.
		actual.Data[0] = 0xff
		expected.Data[0] = 0xff
		actual, err = s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x2a, 0, 0, 0}, actual.Data)

		count, err = s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testUpdate(t *testing.T, s accounts.Store) {
	t.Run("testUpdate", func(t *testing.T) {
		ctx := context.Background()

		record := newAccount(t, 1_000, make([]byte, 4))
		require.NoError(t, s.Save(ctx, record))

		record.Lamports = 2_000
		record.Data = []byte{1, 0, 0, 0}
		record.Owner = generateKey(t)
		record.Executable = true
		record.Slot = 7
		require.NoError(t, s.Save(ctx, record))

		actual, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, record, actual)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testBatchSave(t *testing.T, s accounts.Store) {
	t.Run("testBatchSave", func(t *testing.T) {
		ctx := context.Background()

		var records []*accounts.Account
		for i := 0; i < 5; i++ {
			records = append(records, newAccount(t, uint64(i+1), []byte{byte(i)}))
		}
		require.NoError(t, s.Save(ctx, records...))

		for _, record := range records {
			actual, err := s.Get(ctx, record.Address)
			require.NoError(t, err)
			assertEquivalentRecords(t, record, actual)
		}

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 5, count)
	})
}

func testZeroLamportsRemoves(t *testing.T, s accounts.Store) {
	t.Run("testZeroLamportsRemoves", func(t *testing.T) {
		ctx := context.Background()

		record := newAccount(t, 1, nil)
		require.NoError(t, s.Save(ctx, record))

		record.Lamports = 0
		require.NoError(t, s.Save(ctx, record))

		_, err := s.Get(ctx, record.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)

		// Never-seen accounts without lamports are a no-op.
		require.NoError(t, s.Save(ctx, newAccount(t, 0, nil)))

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func testInvalidRecord(t *testing.T, s accounts.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		valid := newAccount(t, 1, nil)
		invalid := newAccount(t, 1, nil)
		invalid.Owner = invalid.Owner[:10]

		assert.Error(t, s.Save(ctx, valid, invalid))

		_, err := s.Get(ctx, valid.Address)
		assert.Equal(t, accounts.ErrAccountNotFound, err)
	})
}

func newAccount(t *testing.T, lamports uint64, data []byte) *accounts.Account {
	return &accounts.Account{
		Address:  generateKey(t),
		Owner:    generateKey(t),
		Lamports: lamports,
		Data:     data,
		Slot:     1,
	}
}

func generateKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *accounts.Account) {
	assert.EqualValues(t, obj1.Address, obj2.Address)
	assert.EqualValues(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.Equal(t, obj1.Executable, obj2.Executable)
	assert.Equal(t, len(obj1.Data), len(obj2.Data))
	if len(obj1.Data) > 0 {
		assert.Equal(t, obj1.Data, obj2.Data)
	}
	assert.Equal(t, obj1.Slot, obj2.Slot)
}
