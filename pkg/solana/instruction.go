package solana

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrIncorrectProgram is returned when decompiling an instruction that
	// targets a different program.
	ErrIncorrectProgram = errors.New("incorrect program")

	// ErrIncorrectInstruction is returned when decompiling an instruction
	// that is malformed or of another kind.
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta describes how an instruction references an account.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta returns a writable account reference.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta returns a read-only account reference.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey: pub,
		IsSigner:  isSigner,
	}
}

// layoutRank orders account metas the way a message lays out its static
// keys: the payer, then signers, then writable before read-only. Invoked
// programs go after every other account. Lower ranks come first.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
func (a AccountMeta) layoutRank() int {
	var rank int
	if !a.isPayer {
		rank |= 1 << 3
	}
	if a.isProgram {
		rank |= 1 << 2
	}
	if !a.IsSigner {
		rank |= 1 << 1
	}
	if !a.IsWritable {
		rank |= 1
	}
	return rank
}

// sortAccountMetas sorts accounts by layoutRank, breaking ties by key.
func sortAccountMetas(accounts []AccountMeta) {
	sort.Slice(accounts, func(i, j int) bool {
		ri, rj := accounts[i].layoutRank(), accounts[j].layoutRank()
		if ri != rj {
			return ri < rj
		}
		return bytes.Compare(accounts[i].PublicKey, accounts[j].PublicKey) < 0
	})
}

// Instruction is a single program invocation within a transaction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// CompiledInstruction is an instruction whose program and accounts have
// been replaced by indexes into the message account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
