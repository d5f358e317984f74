package square

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/square-program/pkg/solana"
)

// Instruction returns the instruction that increments the square held by
// account.
func Instruction(program, account ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] Square account
	return solana.NewInstruction(
		program,
		[]byte{},
		solana.NewAccountMeta(account, false),
	)
}

type DecompiledIncrement struct {
	Account ed25519.PublicKey
}

// DecompileIncrement decompiles the increment instruction of program at
// index in m.
func DecompileIncrement(m solana.Message, index int, program ed25519.PublicKey) (*DecompiledIncrement, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], program) {
		return nil, solana.ErrIncorrectProgram
	}

	if len(i.Accounts) < 1 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &DecompiledIncrement{
		Account: m.Accounts[i.Accounts[0]],
	}, nil
}
