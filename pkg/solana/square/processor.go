package square

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/runtime"
)

// ProcessInstruction increments the record held by the first account. The
// instruction data is ignored.
func ProcessInstruction(ctx *runtime.InvokeContext, programID ed25519.PublicKey, accounts []*runtime.AccountInfo, _ []byte) error {
	ctx.Log("Hello Solana! (from Go!)")

	if len(accounts) == 0 {
		return solana.ErrNotEnoughAccountKeys
	}
	account := accounts[0]

	if !bytes.Equal(account.Owner, programID) {
		ctx.Log("Greeted account does not have the correct program id")
		return solana.ErrIncorrectProgramID
	}

	ctx.Log("Debug output:")
	ctx.Log("Account Id: %s", base58.Encode(account.Key))
	ctx.Log("Executable?: %t", account.Executable)
	ctx.Log("Lamports: %d", account.Lamports)
	ctx.Log("Debug output complete.")

	ctx.Log("Adding 1 to sum...")

	var record *MathStuffSquare
	err := account.ViewData(func(data []byte) (err error) {
		record, err = Decode(data)
		return err
	})
	if err != nil {
		return err
	}

	record.Square++

	err = account.UpdateData(func(data []byte) error {
		return record.Encode(data)
	})
	if err != nil {
		return err
	}

	ctx.Log("Current square is now: %d", record.Square)

	return nil
}
