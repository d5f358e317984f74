package runtime

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
	sync_util "github.com/code-payments/square-program/pkg/sync"
)

// GetAccountInfo implements solana.Client.GetAccountInfo
func (b *Bank) GetAccountInfo(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	record, err := b.store.Get(context.Background(), account)
	if err == accounts.ErrAccountNotFound {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	} else if err != nil {
		return solana.AccountInfo{}, errors.Wrap(err, "failed to get account")
	}

	return solana.AccountInfo{
		Data:       record.Data,
		Owner:      record.Owner,
		Lamports:   record.Lamports,
		Executable: record.Executable,
	}, nil
}

// GetBalance implements solana.Client.GetBalance
func (b *Bank) GetBalance(account ed25519.PublicKey) (uint64, error) {
	record, err := b.store.Get(context.Background(), account)
	if err == accounts.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrap(err, "failed to get account")
	}
	return record.Lamports, nil
}

// GetMinimumBalanceForRentExemption implements solana.Client.GetMinimumBalanceForRentExemption
func (b *Bank) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return MinimumBalanceForRentExemption(size), nil
}

// GetLatestBlockhash implements solana.Client.GetLatestBlockhash
func (b *Bank) GetLatestBlockhash() (solana.Blockhash, error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	return b.blockhashes[len(b.blockhashes)-1], nil
}

// GetSlot implements solana.Client.GetSlot
func (b *Bank) GetSlot(_ solana.Commitment) (uint64, error) {
	return b.currentSlot(), nil
}

// GetSignatureStatus implements solana.Client.GetSignatureStatus. Processed
// transactions are final, so there is nothing to wait for.
func (b *Bank) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := b.GetSignatureStatuses([]solana.Signature{sig})
	if err != nil {
		return nil, err
	}

	if statuses[0] == nil {
		return nil, solana.ErrSignatureNotFound
	}
	return statuses[0], nil
}

// GetSignatureStatuses implements solana.Client.GetSignatureStatuses
func (b *Bank) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		record, ok := b.getRecord(sig)
		if !ok {
			continue
		}

		statuses[i] = &solana.SignatureStatus{
			Slot:               record.slot,
			ErrorResult:        record.err,
			ConfirmationStatus: finalizedConfirmationStatus,
		}
	}
	return statuses, nil
}

// GetTransaction implements solana.Client.GetTransaction
func (b *Bank) GetTransaction(sig solana.Signature, _ solana.Commitment) (solana.ConfirmedTransaction, error) {
	record, ok := b.getRecord(sig)
	if !ok {
		return solana.ConfirmedTransaction{}, solana.ErrSignatureNotFound
	}

	blockTime := record.blockTime
	meta := record.meta

	return solana.ConfirmedTransaction{
		Slot:        record.slot,
		BlockTime:   &blockTime,
		Transaction: record.tx,
		Err:         record.err,
		Meta:        &meta,
	}, nil
}

// SubmitTransaction implements solana.Client.SubmitTransaction. Rejected
// transactions return their *solana.TransactionError. Execution failures
// are reported through the signature status, as a cluster would.
func (b *Bank) SubmitTransaction(tx solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	var sig solana.Signature
	if len(tx.Signatures) > 0 {
		sig = tx.Signatures[0]
	}

	if _, err := b.ProcessTransaction(context.Background(), tx); err != nil {
		return sig, err
	}
	return sig, nil
}

// RequestAirdrop implements solana.Client.RequestAirdrop. Credits are capped
// per request and rate limited per recipient.
func (b *Bank) RequestAirdrop(account ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	ctx := context.Background()

	log := b.log.WithFields(logrus.Fields{
		"method":   "RequestAirdrop",
		"account":  base58.Encode(account),
		"lamports": lamports,
	})

	if lamports == 0 || lamports > b.conf.maxAirdropLamports.Get(ctx) {
		return solana.Signature{}, ErrInvalidAirdropAmount
	}

	if !b.faucet.Allow(base58.Encode(account)) {
		return solana.Signature{}, ErrAirdropRateLimited
	}

	unlock := b.locks.LockAll(sync_util.LockedKey{Key: account, Exclusive: true})
	defer unlock()

	loaded, err := b.loadAccounts(ctx, []ed25519.PublicKey{account})
	if err != nil {
		return solana.Signature{}, err
	}

	record := loaded[0]
	preBalance := record.Lamports
	record.Lamports += lamports
	if !isRentExempt(record.Lamports, len(record.Data)) {
		return solana.Signature{}, solana.NewInsufficientFundsForRentError(0)
	}

	sig := airdropSignature(account)
	slot := b.advance(sig)
	record.Slot = slot

	if err := b.store.Save(ctx, record); err != nil {
		log.WithError(err).Warn("failure saving airdrop")
		return solana.Signature{}, errors.Wrap(err, "failed to save account")
	}

	b.record(sig, &transactionRecord{
		slot:      slot,
		blockTime: b.now(),
		meta: solana.TransactionMeta{
			PreBalances:  []uint64{preBalance},
			PostBalances: []uint64{record.Lamports},
		},
	})

	recordAirdrop(ctx)
	log.WithField("signature", sig.String()).Debug("airdrop credited")

	return sig, nil
}
