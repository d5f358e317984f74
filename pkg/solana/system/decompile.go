package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/square-program/pkg/solana"
)

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, args, err := decompile(m, index, CommandCreateAccount, 2)
	if err != nil {
		return nil, err
	}

	return &DecompiledCreateAccount{
		Funder:   m.Accounts[i.Accounts[0]],
		Address:  m.Accounts[i.Accounts[1]],
		Lamports: args.Lamports,
		Size:     args.Space,
		Owner:    args.Owner,
	}, nil
}

type DecompiledAssign struct {
	Address ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecompileAssign(m solana.Message, index int) (*DecompiledAssign, error) {
	i, args, err := decompile(m, index, CommandAssign, 1)
	if err != nil {
		return nil, err
	}

	return &DecompiledAssign{
		Address: m.Accounts[i.Accounts[0]],
		Owner:   args.Owner,
	}, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, args, err := decompile(m, index, CommandTransfer, 2)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		From:     m.Accounts[i.Accounts[0]],
		To:       m.Accounts[i.Accounts[1]],
		Lamports: args.Lamports,
	}, nil
}

type DecompiledCreateAccountWithSeed struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey
	Base    ed25519.PublicKey
	Seed    string

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccountWithSeed(m solana.Message, index int) (*DecompiledCreateAccountWithSeed, error) {
	i, args, err := decompile(m, index, CommandCreateAccountWithSeed, 2, 3)
	if err != nil {
		return nil, err
	}

	return &DecompiledCreateAccountWithSeed{
		Funder:   m.Accounts[i.Accounts[0]],
		Address:  m.Accounts[i.Accounts[1]],
		Base:     args.Base,
		Seed:     args.Seed,
		Lamports: args.Lamports,
		Size:     args.Space,
		Owner:    args.Owner,
	}, nil
}

type DecompiledAllocate struct {
	Address ed25519.PublicKey
	Size    uint64
}

func DecompileAllocate(m solana.Message, index int) (*DecompiledAllocate, error) {
	i, args, err := decompile(m, index, CommandAllocate, 1)
	if err != nil {
		return nil, err
	}

	return &DecompiledAllocate{
		Address: m.Accounts[i.Accounts[0]],
		Size:    args.Space,
	}, nil
}

// decompile locates the system instruction at index, checks it carries the
// expected command with one of the allowed account counts, and decodes its
// arguments.
func decompile(m solana.Message, index int, command Command, accountCounts ...int) (solana.CompiledInstruction, *Args, error) {
	if index < 0 || index >= len(m.Instructions) {
		return solana.CompiledInstruction{}, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return i, nil, solana.ErrIncorrectProgram
	}

	args, err := ParseArgs(i.Data)
	if err != nil || args.Command != command {
		return i, nil, solana.ErrIncorrectInstruction
	}

	for _, count := range accountCounts {
		if len(i.Accounts) == count {
			return i, args, nil
		}
	}

	return i, nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
}
