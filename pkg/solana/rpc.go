package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/square-program/pkg/retry"
	"github.com/code-payments/square-program/pkg/retry/backoff"
)

const (
	// Roughly 32 slots at PollRate.
	sigStatusPollLimit = 2 * 32

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602

	blockhashTTL = 2 * time.Second
)

var (
	errRateLimited             = errors.New("rate limited")
	errServiceError            = errors.New("service error")
	errConfirmationsNotReached = errors.New("confirmations not reached")
)

// SignatureStatusSource looks up the status of submitted transactions.
type SignatureStatusSource interface {
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
}

// PollSignatureStatus polls source until sig reaches commitment or fails
// execution. A failed transaction is returned as a status carrying its
// ErrorResult, not as an error.
func PollSignatureStatus(source SignatureStatusSource, sig Signature, commitment Commitment) (*SignatureStatus, error) {
	return pollSignatureStatus(source, sig, commitment, PollRate)
}

func pollSignatureStatus(source SignatureStatusSource, sig Signature, commitment Commitment, interval time.Duration) (*SignatureStatus, error) {
	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := source.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return ErrSignatureNotFound
			case status.ErrorResult != nil, status.Reached(commitment):
				return nil
			default:
				return errConfirmationsNotReached
			}
		},
		retry.RetriableErrors(ErrSignatureNotFound, errConfirmationsNotReached),
		retry.Limit(sigStatusPollLimit),
		retry.Backoff(backoff.Constant(interval), interval),
	)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// blockhashCache holds the latest blockhash for a randomized window around
// blockhashTTL so concurrent callers don't refresh in lockstep.
type blockhashCache struct {
	mu        sync.RWMutex
	hash      Blockhash
	refreshed time.Time
}

func (c *blockhashCache) get() (Blockhash, bool) {
	window := time.Duration(float64(blockhashTTL) * (0.8 + rand.Float64()))

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.hash == (Blockhash{}) || time.Since(c.refreshed) >= window {
		return Blockhash{}, false
	}
	return c.hash, true
}

func (c *blockhashCache) set(hash Blockhash) {
	c.mu.Lock()
	c.hash = hash
	c.refreshed = time.Now()
	c.mu.Unlock()
}

type client struct {
	log     *logrus.Entry
	rpc     jsonrpc.RPCClient
	retrier retry.Retrier

	blockhashes  blockhashCache
	pollInterval time.Duration
}

// New returns a Client talking JSON RPC to endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

// NewWithRPCOptions is New with custom transport options, such as headers
// or an http.Client.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return newClient(
		jsonrpc.NewClientWithOpts(endpoint, opts),
		retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		PollRate,
	)
}

func newClient(rpc jsonrpc.RPCClient, retrier retry.Retrier, pollInterval time.Duration) *client {
	return &client{
		log:          logrus.StandardLogger().WithField("type", "solana/client"),
		rpc:          rpc,
		retrier:      retrier,
		pollInterval: pollInterval,
	}
}

// call invokes method, retrying rate limits and node failures. RPC errors
// the node reports for the request itself are returned as *jsonrpc.RPCError.
func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		err := c.rpc.CallFor(out, method, params...)
		if err == nil {
			return nil
		}

		rpcErr, ok := err.(*jsonrpc.RPCError)
		if !ok {
			return err
		}

		switch {
		case rpcErr.Code == 429:
			c.log.WithField("method", method).Warn("rate limited")
			return errRateLimited
		case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
			c.log.WithError(rpcErr).WithField("method", method).Warn("node unavailable")
			return errServiceError
		default:
			return rpcErr
		}
	})
	return err
}

func (c *client) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	var lamports uint64
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed")
	}
	return lamports, nil
}

func (c *client) GetSlot(commitment Commitment) (uint64, error) {
	// The node rejects a bare config object, it has to be a positional
	// parameter list.
	var slot uint64
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed")
	}
	return slot, nil
}

func (c *client) GetLatestBlockhash() (Blockhash, error) {
	if hash, ok := c.blockhashes.get(); ok {
		return hash, nil
	}

	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getLatestBlockhash"); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed")
	}

	raw, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return Blockhash{}, errors.Wrap(err, "invalid blockhash in response")
	}
	if len(raw) != len(Blockhash{}) {
		return Blockhash{}, errors.Errorf("invalid blockhash length %d", len(raw))
	}

	var hash Blockhash
	copy(hash[:], raw)
	c.blockhashes.set(hash)

	return hash, nil
}

func (c *client) GetTransaction(sig Signature, commitment Commitment) (ConfirmedTransaction, error) {
	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp *struct {
		Slot        uint64           `json:"slot"`
		BlockTime   *int64           `json:"blockTime"`
		Transaction []string         `json:"transaction"` // [data, encoding]
		Meta        *TransactionMeta `json:"meta"`
	}
	if err := c.call(&resp, "getTransaction", base58.Encode(sig[:]), config); err != nil {
		return ConfirmedTransaction{}, errors.Wrap(err, "getTransaction() failed")
	}
	if resp == nil {
		return ConfirmedTransaction{}, ErrSignatureNotFound
	}
	if len(resp.Transaction) == 0 {
		return ConfirmedTransaction{}, errors.New("missing transaction in response")
	}

	txn := ConfirmedTransaction{
		Slot: resp.Slot,
		Meta: resp.Meta,
	}
	if resp.BlockTime != nil {
		blockTime := time.Unix(*resp.BlockTime, 0)
		txn.BlockTime = &blockTime
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Transaction[0])
	if err != nil {
		return txn, errors.Wrap(err, "failed to decode transaction")
	}
	if err := txn.Transaction.Unmarshal(raw); err != nil {
		return txn, errors.Wrap(err, "failed to unmarshal transaction")
	}

	if resp.Meta != nil {
		if txn.Err, err = ParseTransactionError(resp.Meta.Err); err != nil {
			return txn, errors.Wrap(err, "failed to parse transaction result")
		}
	}

	return txn, nil
}

func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp struct {
		Value uint64 `json:"value"`
	}
	err := c.call(&resp, "getBalance", base58.Encode(account), CommitmentProcessed)
	if rpcErr, ok := err.(*jsonrpc.RPCError); ok && rpcErr.Code == invalidParamCode {
		return 0, ErrNoBalance
	} else if err != nil {
		return 0, errors.Wrap(err, "getBalance() failed")
	}
	return resp.Value, nil
}

func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]

	config := struct {
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	err := c.call(&sigStr, "sendTransaction", base58.Encode(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed")
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, errors.Wrap(rpcErr, "sendTransaction() failed")
	}

	c.log.WithFields(logrus.Fields{
		"signature": base58.Encode(sig[:]),
		"error":     txErr.Error(),
	}).Debug("transaction rejected by preflight")

	return sig, txErr
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"` // [data, encoding]
			Executable bool     `json:"executable"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed")
	}
	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	owner, err := base58.Decode(resp.Value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid owner in response")
	}

	info := AccountInfo{
		Owner:      owner,
		Lamports:   resp.Value.Lamports,
		Executable: resp.Value.Executable,
	}
	if len(resp.Value.Data) > 0 {
		if info.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0]); err != nil {
			return AccountInfo{}, errors.Wrap(err, "invalid account data in response")
		}
	}

	return info, nil
}

func (c *client) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var sigStr string
	if err := c.call(&sigStr, "requestAirdrop", base58.Encode(account), lamports, commitment); err != nil {
		return Signature{}, errors.Wrap(err, "requestAirdrop() failed")
	}

	raw, err := base58.Decode(sigStr)
	if err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}

	var sig Signature
	copy(sig[:], raw)
	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature in response")
	}

	return sig, nil
}

func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	return pollSignatureStatus(c, sig, commitment, c.pollInterval)
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i := range sigs {
		encoded[i] = base58.Encode(sigs[i][:])
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp struct {
		Value []*struct {
			Slot               uint64          `json:"slot"`
			Confirmations      *int            `json:"confirmations"`
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil || i >= len(statuses) {
			continue
		}

		status := &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
		}

		if len(v.Err) > 0 {
			var raw interface{}
			if err := json.Unmarshal(v.Err, &raw); err != nil {
				return nil, errors.Wrap(err, "failed to decode transaction result")
			}

			txErr, err := ParseTransactionError(raw)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse transaction result")
			}
			status.ErrorResult = txErr
		}

		statuses[i] = status
	}

	return statuses, nil
}
