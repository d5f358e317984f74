package solana

import (
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"
)

const (
	ticksPerSec  = 160
	ticksPerSlot = 64
	slotsPerSec  = ticksPerSec / ticksPerSlot

	// PollRate is half a slot.
	PollRate = (time.Second / slotsPerSec) / 2
)

// Commitment is the level of finality a query or submission waits for. It
// marshals as the RPC config object carrying the level.
type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// CommitmentFromString maps a CLI commitment level onto a Commitment,
// defaulting to confirmed.
func CommitmentFromString(s string) Commitment {
	switch s {
	case confirmationStatusProcessed:
		return CommitmentProcessed
	case confirmationStatusFinalized:
		return CommitmentFinalized
	default:
		return CommitmentConfirmed
	}
}

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")
)

// AccountInfo is an account as reported by a node.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction is rooted.
	Confirmations      *int
	ConfirmationStatus string
}

// Confirmed reports whether a supermajority has voted on the transaction's
// block.
func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized(), s.ConfirmationStatus == confirmationStatusConfirmed:
		return true
	default:
		return *s.Confirmations >= 1
	}
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// Reached reports whether the status satisfies commitment.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentProcessed:
		return true
	case CommitmentFinalized:
		return s.Finalized()
	default:
		return s.Confirmed()
	}
}

// TransactionMeta is the execution metadata the cluster keeps for a
// transaction.
type TransactionMeta struct {
	Err          interface{} `json:"err"`
	Fee          uint64      `json:"fee"`
	PreBalances  []uint64    `json:"preBalances"`
	PostBalances []uint64    `json:"postBalances"`
	LogMessages  []string    `json:"logMessages"`
}

type ConfirmedTransaction struct {
	Slot        uint64
	BlockTime   *time.Time
	Transaction Transaction
	Err         *TransactionError
	Meta        *TransactionMeta
}

// Client is the subset of the Solana JSON RPC API used to drive programs.
//
// Reference: https://docs.solana.com/api/http
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetLatestBlockhash() (Blockhash, error)

	// GetSignatureStatus waits for the signature to reach the commitment,
	// or to fail.
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)

	// GetSignatureStatuses returns a nil entry for every unknown signature.
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)

	GetSlot(Commitment) (uint64, error)
	GetTransaction(Signature, Commitment) (ConfirmedTransaction, error)
	RequestAirdrop(ed25519.PublicKey, uint64, Commitment) (Signature, error)

	// SubmitTransaction returns the node's *TransactionError when preflight
	// rejects the transaction.
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}
