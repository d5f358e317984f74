package system

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/square-program/pkg/solana"
)

// ProgramKey is the address of the system program.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey [32]byte

// MaxPermittedDataLength is the largest data buffer the system program will
// allocate for an account.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Command identifies a system instruction. Values follow the declaration
// order of the system program's instruction enum.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs
type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
	CommandCreateAccountWithSeed
	commandAdvanceNonceAccount
	commandWithdrawNonceAccount
	commandInitializeNonceAccount
	commandAuthorizeNonceAccount
	CommandAllocate
)

func (c Command) String() string {
	switch c {
	case CommandCreateAccount:
		return "CreateAccount"
	case CommandAssign:
		return "Assign"
	case CommandTransfer:
		return "Transfer"
	case CommandCreateAccountWithSeed:
		return "CreateAccountWithSeed"
	case CommandAllocate:
		return "Allocate"
	default:
		return "Unsupported"
	}
}

var ErrUnsupportedCommand = errors.New("unsupported system command")

// Args is the bincode payload of a system instruction. Only the fields the
// Command carries are encoded.
type Args struct {
	Command  Command
	Base     ed25519.PublicKey
	Seed     string
	Lamports uint64
	Space    uint64
	Owner    ed25519.PublicKey
}

func (a Args) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint32(uint32(a.Command), bin.LE); err != nil {
		return err
	}

	switch a.Command {
	case CommandCreateAccount:
		return writeAll(
			func() error { return enc.WriteUint64(a.Lamports, bin.LE) },
			func() error { return enc.WriteUint64(a.Space, bin.LE) },
			func() error { return writeKey(enc, a.Owner) },
		)
	case CommandAssign:
		return writeKey(enc, a.Owner)
	case CommandTransfer:
		return enc.WriteUint64(a.Lamports, bin.LE)
	case CommandCreateAccountWithSeed:
		return writeAll(
			func() error { return writeKey(enc, a.Base) },
			func() error { return enc.WriteRustString(a.Seed) },
			func() error { return enc.WriteUint64(a.Lamports, bin.LE) },
			func() error { return enc.WriteUint64(a.Space, bin.LE) },
			func() error { return writeKey(enc, a.Owner) },
		)
	case CommandAllocate:
		return enc.WriteUint64(a.Space, bin.LE)
	default:
		return ErrUnsupportedCommand
	}
}

func (a *Args) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	command, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return errors.Wrap(err, "failed to read command")
	}
	a.Command = Command(command)

	switch a.Command {
	case CommandCreateAccount:
		if a.Lamports, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
		if a.Space, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
		a.Owner, err = readKey(dec)
		return err
	case CommandAssign:
		a.Owner, err = readKey(dec)
		return err
	case CommandTransfer:
		a.Lamports, err = dec.ReadUint64(bin.LE)
		return err
	case CommandCreateAccountWithSeed:
		if a.Base, err = readKey(dec); err != nil {
			return err
		}
		if a.Seed, err = dec.ReadRustString(); err != nil {
			return err
		}
		if a.Lamports, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
		if a.Space, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
		a.Owner, err = readKey(dec)
		return err
	case CommandAllocate:
		a.Space, err = dec.ReadUint64(bin.LE)
		return err
	default:
		return ErrUnsupportedCommand
	}
}

// Marshal returns the instruction data for a.
func (a Args) Marshal() []byte {
	var buf bytes.Buffer
	if err := a.MarshalWithEncoder(bin.NewBinEncoder(&buf)); err != nil {
		// Only reachable with an unsupported command, which no builder produces.
		panic(err)
	}
	return buf.Bytes()
}

// ParseArgs decodes system instruction data.
func ParseArgs(data []byte) (*Args, error) {
	var a Args
	if err := a.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &a, nil
}

func writeKey(enc *bin.Encoder, key ed25519.PublicKey) error {
	var padded [ed25519.PublicKeySize]byte
	copy(padded[:], key)
	return enc.WriteBytes(padded[:], false)
}

func readKey(dec *bin.Decoder) (ed25519.PublicKey, error) {
	b, err := dec.ReadNBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}

	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, b)
	return key, nil
}

func writeAll(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	return solana.NewInstruction(
		ProgramKey[:],
		Args{Command: CommandCreateAccount, Lamports: lamports, Space: size, Owner: owner}.Marshal(),
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Assign changes the owner of a system owned account.
func Assign(address, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Assigned account
	return solana.NewInstruction(
		ProgramKey[:],
		Args{Command: CommandAssign, Owner: owner}.Marshal(),
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports out of a system owned account.
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	return solana.NewInstruction(
		ProgramKey[:],
		Args{Command: CommandTransfer, Lamports: lamports}.Marshal(),
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// CreateAccountWithSeed creates an account at the address derived from
// base, seed and owner. The base account only signs separately when it
// isn't the funder.
func CreateAccountWithSeed(funder, address, base ed25519.PublicKey, seed string, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Created account
	//   2. [SIGNER] (optional) Base account
	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, false),
	}
	if !bytes.Equal(funder, base) {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(base, true))
	}

	return solana.NewInstruction(
		ProgramKey[:],
		Args{
			Command:  CommandCreateAccountWithSeed,
			Base:     base,
			Seed:     seed,
			Lamports: lamports,
			Space:    size,
			Owner:    owner,
		}.Marshal(),
		accounts...,
	)
}

// Allocate sets the data size of a system owned account.
func Allocate(address ed25519.PublicKey, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] New account
	return solana.NewInstruction(
		ProgramKey[:],
		Args{Command: CommandAllocate, Space: size}.Marshal(),
		solana.NewAccountMeta(address, true),
	)
}
