package runtime

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/system"
)

// Custom error codes of the system program.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L20
const (
	systemErrAccountAlreadyInUse        solana.CustomError = 0
	systemErrResultWithNegativeLamports solana.CustomError = 1
	systemErrInvalidAccountDataLength   solana.CustomError = 3
	systemErrAddressWithSeedMismatch    solana.CustomError = 5
)

// processSystemInstruction implements the subset of the system program
// covered by the system package's builders.
func processSystemInstruction(ctx *InvokeContext, _ ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	args, err := system.ParseArgs(data)
	if err != nil {
		return solana.ErrInvalidInstructionData
	}

	ctx.log.WithField("command", args.Command.String()).Trace("processing system instruction")

	switch args.Command {
	case system.CommandCreateAccount:
		if len(accounts) < 2 {
			return solana.ErrNotEnoughAccountKeys
		}
		if !accounts[1].IsSigner {
			ctx.Log("Create Account: account %s must sign", base58.Encode(accounts[1].Key))
			return solana.ErrMissingRequiredSignature
		}
		return createAccount(ctx, accounts[0], accounts[1], args.Lamports, args.Space, args.Owner, true)

	case system.CommandCreateAccountWithSeed:
		if len(accounts) < 2 {
			return solana.ErrNotEnoughAccountKeys
		}

		expected, err := solana.CreateWithSeed(args.Base, args.Seed, args.Owner)
		if err != nil {
			return solana.ErrInvalidSeeds
		}
		if !bytes.Equal(expected, accounts[1].Key) {
			ctx.Log(
				"Create: address %s does not match derived address %s",
				base58.Encode(accounts[1].Key),
				base58.Encode(expected),
			)
			return systemErrAddressWithSeedMismatch
		}

		if !isSignedBy(args.Base, accounts) {
			ctx.Log("Create Account: base %s must sign", base58.Encode(args.Base))
			return solana.ErrMissingRequiredSignature
		}

		// The base signature authorizes the derived address.
		return createAccount(ctx, accounts[0], accounts[1], args.Lamports, args.Space, args.Owner, true)

	case system.CommandAssign:
		if len(accounts) < 1 {
			return solana.ErrNotEnoughAccountKeys
		}
		return assign(ctx, accounts[0], args.Owner, accounts[0].IsSigner)

	case system.CommandTransfer:
		if len(accounts) < 2 {
			return solana.ErrNotEnoughAccountKeys
		}
		return transfer(ctx, accounts[0], accounts[1], args.Lamports)

	case system.CommandAllocate:
		if len(accounts) < 1 {
			return solana.ErrNotEnoughAccountKeys
		}
		return allocate(ctx, accounts[0], args.Space, accounts[0].IsSigner)

	default:
		return solana.ErrInvalidInstructionData
	}
}

func createAccount(ctx *InvokeContext, funder, address *AccountInfo, lamports, space uint64, owner ed25519.PublicKey, authorized bool) error {
	if address.Lamports > 0 {
		ctx.Log("Create Account: account %s already in use", base58.Encode(address.Key))
		return systemErrAccountAlreadyInUse
	}

	if err := allocate(ctx, address, space, authorized); err != nil {
		return err
	}
	if err := assign(ctx, address, owner, authorized); err != nil {
		return err
	}
	return transfer(ctx, funder, address, lamports)
}

func allocate(ctx *InvokeContext, address *AccountInfo, space uint64, authorized bool) error {
	if !authorized {
		ctx.Log("Allocate: 'to' account %s must sign", base58.Encode(address.Key))
		return solana.ErrMissingRequiredSignature
	}

	if address.DataLen() > 0 || !bytes.Equal(address.Owner, system.ProgramKey[:]) {
		ctx.Log("Allocate: account %s already in use", base58.Encode(address.Key))
		return systemErrAccountAlreadyInUse
	}

	if space > system.MaxPermittedDataLength {
		ctx.Log("Allocate: requested %d, max allowed %d", space, system.MaxPermittedDataLength)
		return systemErrInvalidAccountDataLength
	}

	return address.resize(space)
}

func assign(ctx *InvokeContext, address *AccountInfo, owner ed25519.PublicKey, authorized bool) error {
	if bytes.Equal(address.Owner, owner) {
		return nil
	}

	if !authorized {
		ctx.Log("Assign: account %s must sign", base58.Encode(address.Key))
		return solana.ErrMissingRequiredSignature
	}

	address.Owner = owner
	return nil
}

func transfer(ctx *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ctx.Log("Transfer: `from` account %s must sign", base58.Encode(from.Key))
		return solana.ErrMissingRequiredSignature
	}

	if from.DataLen() > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return solana.ErrInvalidArgument
	}

	if lamports > from.Lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return systemErrResultWithNegativeLamports
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func isSignedBy(key ed25519.PublicKey, accounts []*AccountInfo) bool {
	for _, account := range accounts {
		if account.IsSigner && bytes.Equal(account.Key, key) {
			return true
		}
	}
	return false
}
