package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Generated by the Rust SDK's transaction tests, re-signed with a keypair
// whose public half matches the encoded account.
//
// Source: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523
const rustGeneratedAdjusted = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

func TestTransaction_CrossImpl(t *testing.T) {
	keypair := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))
	assert.Equal(t, rustGeneratedAdjusted, base64.StdEncoding.EncodeToString(tx.Marshal()))
	assert.True(t, tx.VerifySignatures())
}

func TestTransaction_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 3)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			[]byte{1, 2, 3},
			NewAccountMeta(public(keys[2]), false),
		),
		NewInstruction(
			public(keys[1]),
			nil,
			NewReadonlyAccountMeta(public(keys[2]), false),
		),
	)
	tx.SetBlockhash(Blockhash{1, 2, 3})
	require.NoError(t, tx.Sign(keys[0]))

	var decoded Transaction
	require.NoError(t, decoded.Unmarshal(tx.Marshal()))
	assert.Equal(t, tx.Signatures, decoded.Signatures)
	assert.Equal(t, tx.Message.Header, decoded.Message.Header)
	assert.Equal(t, tx.Message.Accounts, decoded.Message.Accounts)
	assert.Equal(t, tx.Message.RecentBlockhash, decoded.Message.RecentBlockhash)
	require.Len(t, decoded.Message.Instructions, 2)
	assert.Equal(t, []byte{1, 2, 3}, decoded.Message.Instructions[0].Data)
	assert.Empty(t, decoded.Message.Instructions[1].Data)
	assert.True(t, decoded.VerifySignatures())
}

func TestTransaction_AccountLayout(t *testing.T) {
	keys := generateKeys(t, 5)
	payer, program, writable, readonly, readonlySigner := public(keys[0]), public(keys[1]), public(keys[2]), public(keys[3]), public(keys[4])

	tx := NewTransaction(
		payer,
		NewInstruction(
			program,
			nil,
			NewReadonlyAccountMeta(readonly, false),
			NewReadonlyAccountMeta(readonlySigner, true),
			NewAccountMeta(writable, false),
		),
	)

	m := tx.Message
	require.Len(t, m.Accounts, 5)
	assert.Equal(t, Header{NumSignatures: 2, NumReadonlySigned: 1, NumReadOnly: 2}, m.Header)

	assert.EqualValues(t, payer, m.Accounts[0])
	assert.EqualValues(t, readonlySigner, m.Accounts[1])
	assert.EqualValues(t, writable, m.Accounts[2])
	assert.EqualValues(t, program, m.Accounts[4])

	expected := []struct {
		signer   bool
		writable bool
	}{
		{true, true},
		{true, false},
		{false, true},
		{false, false},
		{false, false},
	}
	for i, e := range expected {
		assert.Equal(t, e.signer, m.IsSigner(i), "signer %d", i)
		assert.Equal(t, e.writable, m.IsWritable(i), "writable %d", i)
	}
}

func TestTransaction_DuplicateAccountsPromoted(t *testing.T) {
	keys := generateKeys(t, 3)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(
			public(keys[1]),
			nil,
			NewReadonlyAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[2]), false),
		),
	)

	assert.Len(t, tx.Message.Accounts, 3)
	assert.Equal(t, []byte{1, 1}, tx.Message.Instructions[0].Accounts)
	assert.True(t, tx.Message.IsWritable(1))
}

func TestTransaction_Sign(t *testing.T) {
	keys := generateKeys(t, 3)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[2]), false)),
	)

	assert.False(t, tx.VerifySignatures())
	assert.Error(t, tx.Sign(keys[2]))

	outsider := generateKeys(t, 1)[0]
	assert.Error(t, tx.Sign(outsider))

	require.NoError(t, tx.Sign(keys[0]))
	assert.True(t, tx.VerifySignatures())

	tx.Message.Instructions[0].Data = []byte{9}
	assert.False(t, tx.VerifySignatures())
}

func TestTransaction_InvalidIndexes(t *testing.T) {
	keys := generateKeys(t, 2)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true)),
	)
	tx.Message.Instructions[0].ProgramIndex = 2
	assert.Error(t, tx.Unmarshal(tx.Marshal()))

	tx = NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true)),
	)
	tx.Message.Instructions[0].Accounts = []byte{2}
	assert.Error(t, tx.Unmarshal(tx.Marshal()))
}

func TestMessage_RejectsVersioned(t *testing.T) {
	var m Message
	assert.Error(t, m.Unmarshal(nil))
	assert.Error(t, m.Unmarshal([]byte{0x80, 1, 0, 0}))
}

func generateKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, amount)

	for i := 0; i < amount; i++ {
		_, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		keys[i] = priv
	}

	return keys
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}
