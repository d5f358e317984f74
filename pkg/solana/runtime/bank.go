package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/square-program/pkg/metrics"
	"github.com/code-payments/square-program/pkg/rate"
	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
	"github.com/code-payments/square-program/pkg/solana/system"
	sync_util "github.com/code-payments/square-program/pkg/sync"
)

const (
	lockStripes = 1024

	finalizedConfirmationStatus = "finalized"
)

var (
	ErrProgramAlreadyDeployed = errors.New("program already deployed")
	ErrInvalidAirdropAmount   = errors.New("invalid airdrop amount")
	ErrAirdropRateLimited     = errors.New("airdrop rate limited")
)

type program struct {
	id         ed25519.PublicKey
	name       string
	entrypoint Entrypoint
}

type transactionRecord struct {
	slot      uint64
	blockTime time.Time
	tx        solana.Transaction
	err       *solana.TransactionError
	meta      solana.TransactionMeta
}

// Result is the outcome of a transaction that was executed and committed.
// Err is set when execution failed, in which case only the fee was charged.
type Result struct {
	Signature solana.Signature
	Slot      uint64
	Fee       uint64
	Err       *solana.TransactionError
	Logs      []string
}

// Invocation is the outcome of a single program invocation.
type Invocation struct {
	Logs          []string
	ConsumedUnits uint64
}

// Bank is an in-process host that executes transactions against an account
// store. It implements solana.Client, so it can stand in for a cluster.
type Bank struct {
	log    *logrus.Entry
	conf   *conf
	store  accounts.Store
	locks  *sync_util.StripedLock
	faucet rate.Limiter

	programsMu sync.RWMutex
	programs   map[string]*program

	stateMu     sync.Mutex
	slot        uint64
	blockhashes []solana.Blockhash
	records     map[solana.Signature]*transactionRecord
}

var _ solana.Client = (*Bank)(nil)

// NewBank returns a bank over store with the system program deployed.
func NewBank(ctx context.Context, store accounts.Store, configProvider ConfigProvider) (*Bank, error) {
	conf := configProvider()

	b := &Bank{
		log:      logrus.StandardLogger().WithField("type", "solana/runtime"),
		conf:     conf,
		store:    store,
		locks:    sync_util.NewStripedLock(lockStripes),
		faucet:   rate.NewLocalLimiter(conf.airdropsPerSecond.Get(ctx)),
		programs: make(map[string]*program),
		records:  make(map[solana.Signature]*transactionRecord),
	}

	genesis := uuid.New()
	b.blockhashes = []solana.Blockhash{sha256.Sum256(genesis[:])}

	if err := b.Deploy(ctx, system.ProgramKey[:], "system_program", processSystemInstruction); err != nil {
		return nil, err
	}

	return b, nil
}

// Deploy registers entrypoint as the program at programID and creates its
// executable account.
func (b *Bank) Deploy(ctx context.Context, programID ed25519.PublicKey, name string, entrypoint Entrypoint) error {
	log := b.log.WithFields(logrus.Fields{
		"method":  "Deploy",
		"program": base58.Encode(programID),
		"name":    name,
	})

	key := string(programID)

	b.programsMu.Lock()
	if _, ok := b.programs[key]; ok {
		b.programsMu.Unlock()
		return ErrProgramAlreadyDeployed
	}
	b.programs[key] = &program{
		id:         programID,
		name:       name,
		entrypoint: entrypoint,
	}
	b.programsMu.Unlock()

	unlock := b.locks.LockAll(sync_util.LockedKey{Key: programID, Exclusive: true})
	defer unlock()

	data := []byte(name)
	record := &accounts.Account{
		Address:    programID,
		Owner:      system.NativeLoaderKey,
		Lamports:   MinimumBalanceForRentExemption(uint64(len(data))),
		Executable: true,
		Data:       data,
		Slot:       b.currentSlot(),
	}
	if err := b.store.Save(ctx, record); err != nil {
		b.programsMu.Lock()
		delete(b.programs, key)
		b.programsMu.Unlock()

		log.WithError(err).Warn("failure saving program account")
		return errors.Wrap(err, "failed to save program account")
	}

	log.Debug("program deployed")
	return nil
}

// ProcessTransaction executes tx and commits the result. A transaction that
// can't be charged a fee is rejected with a *solana.TransactionError and has
// no effect. Otherwise the fee is charged, and the account changes are
// committed only when every instruction succeeds.
func (b *Bank) ProcessTransaction(ctx context.Context, tx solana.Transaction) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessTransaction")
	defer tracer.End()

	start := time.Now()

	if len(tx.Signatures) == 0 {
		return nil, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	sig := tx.Signatures[0]

	log := b.log.WithFields(logrus.Fields{
		"method":     "ProcessTransaction",
		"signature":  sig.String(),
		"invocation": uuid.New().String(),
	})

	if txErr := b.sanitize(tx); txErr != nil {
		log.WithError(txErr).Debug("transaction rejected")
		tracer.OnError(txErr)
		return nil, txErr
	}

	m := tx.Message

	keys := make([]sync_util.LockedKey, len(m.Accounts))
	for i, account := range m.Accounts {
		keys[i] = sync_util.LockedKey{Key: account, Exclusive: m.IsWritable(i)}
	}
	unlock := b.locks.LockAll(keys...)
	defer unlock()

	// Concurrent submissions of the same transaction serialize on the fee
	// payer lock, so only one of them gets past this point.
	if b.hasRecord(sig) {
		return nil, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	loaded, err := b.loadAccounts(ctx, m.Accounts)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	payer := loaded[0]
	if payer.Lamports == 0 {
		return nil, solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
	}

	fee := b.conf.lamportsPerSignature.Get(ctx) * uint64(len(tx.Signatures))
	if payer.Lamports < fee {
		return nil, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	preBalances := make([]uint64, len(loaded))
	for i, record := range loaded {
		preBalances[i] = record.Lamports
	}

	payer.Lamports -= fee

	infos := make([]*AccountInfo, len(loaded))
	for i, record := range loaded {
		infos[i] = newAccountInfoFromRecord(record, m.IsSigner(i), m.IsWritable(i))
	}

	logs, txErr := b.executeMessage(ctx, log, m, infos)
	if txErr == nil {
		txErr = checkRent(m, loaded, infos)
	}

	var updates []*accounts.Account
	postBalances := make([]uint64, len(loaded))
	if txErr == nil {
		for i, info := range infos {
			post := info.snapshot()
			postBalances[i] = post.Lamports

			if m.IsWritable(i) && (i == 0 || !post.Equals(loaded[i])) {
				updates = append(updates, post)
			}
		}
	} else {
		copy(postBalances, preBalances)
		postBalances[0] = payer.Lamports
		updates = append(updates, payer)
	}

	slot := b.advance(sig)
	for _, update := range updates {
		update.Slot = slot
	}

	if err := b.store.Save(ctx, updates...); err != nil {
		log.WithError(err).Warn("failure committing accounts")
		tracer.OnError(err)
		return nil, errors.Wrap(err, "failed to commit accounts")
	}

	result := &Result{
		Signature: sig,
		Slot:      slot,
		Fee:       fee,
		Err:       txErr,
		Logs:      logs,
	}

	b.record(sig, &transactionRecord{
		slot:      slot,
		blockTime: b.now(),
		tx:        tx,
		err:       txErr,
		meta: solana.TransactionMeta{
			Err:          errOrNil(txErr),
			Fee:          fee,
			PreBalances:  preBalances,
			PostBalances: postBalances,
			LogMessages:  logs,
		},
	})

	recordTransactionProcessed(ctx, result, time.Since(start))

	if txErr != nil {
		log.WithError(txErr).Debug("transaction failed")
	} else {
		log.WithField("slot", slot).Debug("transaction processed")
	}

	return result, nil
}

// ExecuteInstruction invokes a deployed program directly against accounts,
// outside of any transaction. No fee is charged and nothing is stored. On
// failure every account is restored to its state before the call.
func (b *Bank) ExecuteInstruction(ctx context.Context, programID ed25519.PublicKey, infos []*AccountInfo, data []byte) (*Invocation, error) {
	p, ok := b.getProgram(programID)
	if !ok {
		return nil, solana.ErrUnsupportedProgramID
	}

	log := b.log.WithFields(logrus.Fields{
		"method":     "ExecuteInstruction",
		"invocation": uuid.New().String(),
	})

	return b.invoke(ctx, log, p, infos, data)
}

func (b *Bank) executeMessage(ctx context.Context, log *logrus.Entry, m solana.Message, infos []*AccountInfo) ([]string, *solana.TransactionError) {
	var logs []string

	for index, instruction := range m.Instructions {
		p, _ := b.getProgram(m.Accounts[instruction.ProgramIndex])

		instructionAccounts := make([]*AccountInfo, len(instruction.Accounts))
		for i, accountIndex := range instruction.Accounts {
			instructionAccounts[i] = infos[accountIndex]
		}

		invocation, err := b.invoke(ctx, log.WithField("instruction", index), p, instructionAccounts, instruction.Data)
		logs = append(logs, invocation.Logs...)
		if err != nil {
			txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
				Index: index,
				Err:   err,
			})
			if convErr != nil {
				log.WithError(convErr).Warn("failure encoding instruction error")
				txErr = solana.NewTransactionError(solana.TransactionErrorInstructionError)
			}
			return logs, txErr
		}
	}

	return logs, nil
}

func (b *Bank) invoke(ctx context.Context, log *logrus.Entry, p *program, infos []*AccountInfo, data []byte) (*Invocation, error) {
	programKey := base58.Encode(p.id)
	invokeCtx := newInvokeContext(
		ctx,
		log.WithField("program_name", p.name),
		p.id,
		b.conf.computeUnitLimit.Get(ctx),
		b.conf.logCost.Get(ctx),
	)

	unique := uniqueAccounts(infos)
	pre := make([]*accounts.Account, len(unique))
	for i, info := range unique {
		pre[i] = info.snapshot()
	}

	err := callEntrypoint(invokeCtx, p, infos, data)
	if invokeCtx.Exceeded() {
		err = solana.ErrComputationalBudgetExceeded
	}
	if err == nil {
		err = verifyInstruction(p.id, pre, unique)
	}

	logs := []string{fmt.Sprintf("Program %s invoke [1]", programKey)}
	logs = append(logs, invokeCtx.Logs()...)
	logs = append(logs, fmt.Sprintf("Program %s consumed %d of %d compute units", programKey, invokeCtx.ConsumedUnits(), invokeCtx.limit))

	if err != nil {
		for i, info := range unique {
			info.restore(pre[i])
		}

		logs = append(logs, fmt.Sprintf("Program %s failed: %v", programKey, err))
		log.WithError(err).Debug("instruction failed")
	} else {
		logs = append(logs, fmt.Sprintf("Program %s success", programKey))
	}

	return &Invocation{
		Logs:          logs,
		ConsumedUnits: invokeCtx.ConsumedUnits(),
	}, err
}

func callEntrypoint(ctx *InvokeContext, p *program, infos []*AccountInfo, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx.log.WithField("panic", r).Warn("program panicked")
			err = solana.ErrProgramFailedToComplete
		}
	}()

	return p.entrypoint(ctx, p.id, infos, data)
}

// verifyInstruction enforces the rules every program is held to, comparing
// the accounts after an invocation against their state before it.
func verifyInstruction(programID ed25519.PublicKey, pre []*accounts.Account, post []*AccountInfo) error {
	isSystemProgram := bytes.Equal(programID, system.ProgramKey[:])

	var preTotal, postTotal uint64
	for i, info := range post {
		before := pre[i]
		after := info.snapshot()

		preTotal += before.Lamports
		postTotal += after.Lamports

		ownedByProgram := bytes.Equal(before.Owner, programID)

		if before.Executable != after.Executable || (before.Executable && !before.Equals(after)) {
			return solana.ErrExecutableModified
		}

		if !bytes.Equal(before.Owner, after.Owner) && (!ownedByProgram || !info.IsWritable) {
			return solana.ErrModifiedProgramID
		}

		if before.Lamports != after.Lamports && !info.IsWritable {
			return solana.ErrReadonlyLamportChange
		}

		if after.Lamports < before.Lamports && !ownedByProgram {
			return solana.ErrExternalLamportSpend
		}

		if len(before.Data) != len(after.Data) && !(isSystemProgram && ownedByProgram) {
			return solana.ErrAccountDataSizeChanged
		}

		if !bytes.Equal(before.Data, after.Data) {
			if !info.IsWritable {
				return solana.ErrReadonlyDataModified
			}
			if !ownedByProgram {
				return solana.ErrExternalAccountDataModified
			}
		}
	}

	if preTotal != postTotal {
		return solana.ErrUnbalancedInstruction
	}

	return nil
}

func checkRent(m solana.Message, loaded []*accounts.Account, infos []*AccountInfo) *solana.TransactionError {
	for i, info := range infos {
		if !m.IsWritable(i) {
			continue
		}

		post := info.snapshot()
		if post.Lamports == 0 || post.Equals(loaded[i]) {
			continue
		}

		if !isRentExempt(post.Lamports, len(post.Data)) {
			return solana.NewInsufficientFundsForRentError(i)
		}
	}
	return nil
}

func (b *Bank) sanitize(tx solana.Transaction) *solana.TransactionError {
	m := tx.Message

	if m.Header.NumSignatures == 0 || int(m.Header.NumSignatures) > len(m.Accounts) {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	seen := make(map[string]struct{}, len(m.Accounts))
	for _, account := range m.Accounts {
		if _, ok := seen[string(account)]; ok {
			return solana.NewTransactionError(solana.TransactionErrorAccountLoadedTwice)
		}
		seen[string(account)] = struct{}{}
	}

	for _, instruction := range m.Instructions {
		if instruction.ProgramIndex == 0 || int(instruction.ProgramIndex) >= len(m.Accounts) {
			return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
		}
		for _, accountIndex := range instruction.Accounts {
			if int(accountIndex) >= len(m.Accounts) {
				return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
			}
		}

		if _, ok := b.getProgram(m.Accounts[instruction.ProgramIndex]); !ok {
			return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}
	}

	if !tx.VerifySignatures() {
		return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	if !b.isRecentBlockhash(m.RecentBlockhash) {
		return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	if b.hasRecord(tx.Signatures[0]) {
		return solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	return nil
}

func (b *Bank) loadAccounts(ctx context.Context, keys []ed25519.PublicKey) ([]*accounts.Account, error) {
	loaded := make([]*accounts.Account, len(keys))
	for i, key := range keys {
		record, err := b.store.Get(ctx, key)
		if err == accounts.ErrAccountNotFound {
			record = &accounts.Account{
				Address: key,
				Owner:   systemOwner(),
			}
		} else if err != nil {
			return nil, errors.Wrapf(err, "failed to load account %s", base58.Encode(key))
		}
		loaded[i] = record
	}
	return loaded, nil
}

func (b *Bank) getProgram(programID ed25519.PublicKey) (*program, bool) {
	b.programsMu.RLock()
	defer b.programsMu.RUnlock()

	p, ok := b.programs[string(programID)]
	return p, ok
}

func (b *Bank) currentSlot() uint64 {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.slot
}

// advance moves to the next slot, deriving its blockhash from the previous
// one and sig.
func (b *Bank) advance(sig solana.Signature) uint64 {
	capacity := int(b.conf.recentBlockhashCapacity.Get(context.Background()))
	if capacity < 1 {
		capacity = 1
	}

	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	b.slot++

	latest := b.blockhashes[len(b.blockhashes)-1]
	b.blockhashes = append(b.blockhashes, sha256.Sum256(append(latest[:], sig[:]...)))
	if len(b.blockhashes) > capacity {
		b.blockhashes = b.blockhashes[len(b.blockhashes)-capacity:]
	}

	return b.slot
}

func (b *Bank) isRecentBlockhash(hash solana.Blockhash) bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	for _, recent := range b.blockhashes {
		if recent == hash {
			return true
		}
	}
	return false
}

func (b *Bank) hasRecord(sig solana.Signature) bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	_, ok := b.records[sig]
	return ok
}

func (b *Bank) record(sig solana.Signature, record *transactionRecord) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	b.records[sig] = record
}

func (b *Bank) getRecord(sig solana.Signature) (*transactionRecord, bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	record, ok := b.records[sig]
	return record, ok
}

func uniqueAccounts(infos []*AccountInfo) []*AccountInfo {
	seen := make(map[*AccountInfo]struct{}, len(infos))
	unique := make([]*AccountInfo, 0, len(infos))
	for _, info := range infos {
		if _, ok := seen[info]; ok {
			continue
		}
		seen[info] = struct{}{}
		unique = append(unique, info)
	}
	return unique
}

func systemOwner() ed25519.PublicKey {
	owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(owner, system.ProgramKey[:])
	return owner
}

func errOrNil(txErr *solana.TransactionError) interface{} {
	if txErr == nil {
		return nil
	}
	return txErr
}

// airdropSignature returns a unique signature for a faucet credit, which
// has no transaction of its own.
func airdropSignature(account ed25519.PublicKey) solana.Signature {
	id := uuid.New()
	digest := sha512.Sum512(append(id[:], account...))

	var sig solana.Signature
	copy(sig[:], digest[:])
	return sig
}

func (b *Bank) now() time.Time {
	return time.Now().UTC()
}
