package square

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/square-program/pkg/metrics"
	"github.com/code-payments/square-program/pkg/retry"
	"github.com/code-payments/square-program/pkg/retry/backoff"
	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/system"
)

const (
	metricsStructName = "square.client"

	maxSubmitAttempts = 3
)

var (
	ErrAccountNotOwnedByProgram = errors.New("account is not owned by the program")

	errBlockhashExpired = errors.New("blockhash expired")
)

// Chain is the subset of a cluster the client needs. It is satisfied by
// solana.Client and by the in-process runtime.Bank.
type Chain interface {
	GetAccountInfo(ed25519.PublicKey, solana.Commitment) (solana.AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(size uint64) (uint64, error)
	GetLatestBlockhash() (solana.Blockhash, error)
	GetSignatureStatus(solana.Signature, solana.Commitment) (*solana.SignatureStatus, error)
	GetTransaction(solana.Signature, solana.Commitment) (solana.ConfirmedTransaction, error)
	RequestAirdrop(ed25519.PublicKey, uint64, solana.Commitment) (solana.Signature, error)
	SubmitTransaction(solana.Transaction, solana.Commitment) (solana.Signature, error)
}

// PingResult describes a confirmed increment.
type PingResult struct {
	Signature solana.Signature
	Slot      uint64
	Logs      []string
}

// Client drives the square program on behalf of a fee payer.
type Client struct {
	log     *logrus.Entry
	conf    *conf
	chain   Chain
	payer   ed25519.PrivateKey
	program ed25519.PublicKey
}

func NewClient(chain Chain, payer ed25519.PrivateKey, program ed25519.PublicKey, configProvider ConfigProvider) *Client {
	return &Client{
		log:     logrus.StandardLogger().WithField("type", "square/client"),
		conf:    configProvider(),
		chain:   chain,
		payer:   payer,
		program: program,
	}
}

func (c *Client) Payer() ed25519.PublicKey {
	return c.payer.Public().(ed25519.PublicKey)
}

func (c *Client) Program() ed25519.PublicKey {
	return c.program
}

// EnsureFunded requests an airdrop for the payer when its balance is below
// min, and returns the resulting balance.
func (c *Client) EnsureFunded(ctx context.Context, min uint64) (uint64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "EnsureFunded")
	defer tracer.End()

	log := c.log.WithFields(logrus.Fields{
		"method": "EnsureFunded",
		"payer":  base58.Encode(c.Payer()),
	})

	balance, err := c.chain.GetBalance(c.Payer())
	if err != nil && err != solana.ErrNoBalance {
		tracer.OnError(err)
		return 0, errors.Wrap(err, "failed to get payer balance")
	}

	if balance >= min {
		return balance, nil
	}

	lamports := c.conf.airdropLamports.Get(ctx)
	log.WithFields(logrus.Fields{
		"balance":  balance,
		"lamports": lamports,
	}).Info("requesting airdrop")

	commitment := c.commitment(ctx)
	sig, err := c.chain.RequestAirdrop(c.Payer(), lamports, commitment)
	if err != nil {
		tracer.OnError(err)
		return 0, errors.Wrap(err, "failed to request airdrop")
	}

	if _, err := c.chain.GetSignatureStatus(sig, commitment); err != nil {
		tracer.OnError(err)
		return 0, errors.Wrap(err, "failed to confirm airdrop")
	}

	return c.chain.GetBalance(c.Payer())
}

// ConfigureAccount returns the square account derived from the payer, seed
// and program, creating it with space bytes of data when it doesn't exist.
// The returned flag reports whether the account was created.
func (c *Client) ConfigureAccount(ctx context.Context, seed string, space uint64) (ed25519.PublicKey, bool, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ConfigureAccount")
	defer tracer.End()

	address, err := solana.CreateWithSeed(c.Payer(), seed, c.program)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to derive account address")
	}

	log := c.log.WithFields(logrus.Fields{
		"method":  "ConfigureAccount",
		"account": base58.Encode(address),
		"seed":    seed,
	})

	info, err := c.chain.GetAccountInfo(address, c.commitment(ctx))
	switch err {
	case nil:
		if !bytes.Equal(info.Owner, c.program) {
			return nil, false, ErrAccountNotOwnedByProgram
		}
		log.Debug("account exists")
		return address, false, nil
	case solana.ErrNoAccountInfo:
	default:
		tracer.OnError(err)
		return nil, false, errors.Wrap(err, "failed to get account info")
	}

	lamports, err := c.chain.GetMinimumBalanceForRentExemption(space)
	if err != nil {
		tracer.OnError(err)
		return nil, false, errors.Wrap(err, "failed to get rent exempt minimum")
	}

	_, err = c.send(ctx, system.CreateAccountWithSeed(
		c.Payer(),
		address,
		c.Payer(),
		seed,
		c.program,
		lamports,
		space,
	))
	if err != nil {
		tracer.OnError(err)
		return nil, false, errors.Wrap(err, "failed to create account")
	}

	log.WithField("lamports", lamports).Info("account created")
	return address, true, nil
}

// Ping increments the square held by account. A failed transaction is
// returned as its *solana.TransactionError.
func (c *Client) Ping(ctx context.Context, account ed25519.PublicKey) (*PingResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Ping")
	defer tracer.End()

	status, err := c.send(ctx, Instruction(c.program, account))
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	result := &PingResult{
		Signature: status.signature,
		Slot:      status.Slot,
	}

	txn, err := c.chain.GetTransaction(status.signature, c.commitment(ctx))
	if err != nil {
		c.log.WithError(err).WithField("method", "Ping").Debug("failure fetching transaction logs")
	} else if txn.Meta != nil {
		result.Logs = txn.Meta.LogMessages
	}

	return result, nil
}

// GetSquare returns the record held by account.
func (c *Client) GetSquare(ctx context.Context, account ed25519.PublicKey) (*MathStuffSquare, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetSquare")
	defer tracer.End()

	info, err := c.chain.GetAccountInfo(account, c.commitment(ctx))
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	if !bytes.Equal(info.Owner, c.program) {
		return nil, ErrAccountNotOwnedByProgram
	}

	return Decode(info.Data)
}

type sentStatus struct {
	*solana.SignatureStatus
	signature solana.Signature
}

// send signs and submits instructions, and waits for the result. The
// transaction is rebuilt with a fresh blockhash when the cluster no longer
// recognizes the one it was signed with.
func (c *Client) send(ctx context.Context, instructions ...solana.Instruction) (*sentStatus, error) {
	commitment := c.commitment(ctx)

	var sig solana.Signature
	var lastErr error
	_, err := retry.RetryWithContext(
		ctx,
		func() error {
			blockhash, err := c.chain.GetLatestBlockhash()
			if err != nil {
				lastErr = errors.Wrap(err, "failed to get latest blockhash")
				return lastErr
			}

			tx := solana.NewTransaction(c.Payer(), instructions...)
			tx.SetBlockhash(blockhash)
			if err := tx.Sign(c.payer); err != nil {
				lastErr = errors.Wrap(err, "failed to sign transaction")
				return lastErr
			}

			sig, lastErr = c.chain.SubmitTransaction(tx, commitment)
			if isBlockhashExpired(lastErr) {
				return errBlockhashExpired
			}
			return lastErr
		},
		retry.RetriableErrors(errBlockhashExpired),
		retry.Limit(maxSubmitAttempts),
		retry.Backoff(backoff.Constant(solana.PollRate), time.Second),
	)
	if err != nil {
		return nil, lastErr
	}

	status, err := c.chain.GetSignatureStatus(sig, commitment)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get signature status")
	}

	if status.ErrorResult != nil {
		c.log.WithFields(logrus.Fields{
			"method":    "send",
			"signature": sig.String(),
		}).WithError(status.ErrorResult).Debug("transaction failed")
		return nil, status.ErrorResult
	}

	return &sentStatus{
		SignatureStatus: status,
		signature:       sig,
	}, nil
}

func (c *Client) commitment(ctx context.Context) solana.Commitment {
	return solana.CommitmentFromString(c.conf.commitment.Get(ctx))
}

func isBlockhashExpired(err error) bool {
	var txErr *solana.TransactionError
	return errors.As(err, &txErr) && txErr.ErrorKey() == solana.TransactionErrorBlockhashNotFound
}
