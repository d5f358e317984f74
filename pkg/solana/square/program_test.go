package square

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/testutil"
)

func TestInstruction(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	program, account := keys[0], keys[1]

	instruction := Instruction(program, account)
	assert.Equal(t, program, instruction.Program)
	assert.NotNil(t, instruction.Data)
	assert.Empty(t, instruction.Data)

	require.Len(t, instruction.Accounts, 1)
	assert.Equal(t, account, instruction.Accounts[0].PublicKey)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[0].IsSigner)
}

func TestDecompileIncrement(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 4)
	payer, program, account, other := keys[0], keys[1], keys[2], keys[3]

	tx := solana.NewTransaction(
		payer,
		Instruction(program, account),
		solana.NewInstruction(other, nil),
		solana.NewInstruction(program, nil),
	)

	decompiled, err := DecompileIncrement(tx.Message, 0, program)
	require.NoError(t, err)
	assert.EqualValues(t, account, decompiled.Account)

	_, err = DecompileIncrement(tx.Message, 1, program)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, err = DecompileIncrement(tx.Message, 2, program)
	assert.Error(t, err)

	_, err = DecompileIncrement(tx.Message, 3, program)
	assert.Error(t, err)

	_, err = DecompileIncrement(tx.Message, -1, program)
	assert.Error(t, err)
}
