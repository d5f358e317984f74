package runtime

import (
	"context"
	"time"

	"github.com/code-payments/square-program/pkg/metrics"
	"github.com/code-payments/square-program/pkg/solana"
)

const (
	metricsStructName = "runtime.bank"

	transactionCountMetricName   = "Runtime/Transaction/Count"
	transactionLatencyMetricName = "Runtime/Transaction/Latency"
	airdropCountMetricName       = "Runtime/Airdrop/Count"

	transactionFailedEventName = "RuntimeTransactionFailed"
)

func recordTransactionProcessed(ctx context.Context, result *Result, latency time.Duration) {
	metrics.RecordCount(ctx, transactionCountMetricName, 1)
	metrics.RecordDuration(ctx, transactionLatencyMetricName, latency)

	if result.Err != nil {
		recordTransactionFailedEvent(ctx, result.Signature, result.Err)
	}
}

func recordTransactionFailedEvent(ctx context.Context, sig solana.Signature, txErr *solana.TransactionError) {
	kvPairs := map[string]interface{}{
		"signature": sig.String(),
		"error":     string(txErr.ErrorKey()),
	}
	if instructionErr := txErr.InstructionError(); instructionErr != nil {
		kvPairs["instruction"] = instructionErr.Index
		kvPairs["instruction_error"] = string(instructionErr.ErrorKey())
	}
	metrics.RecordEvent(ctx, transactionFailedEventName, kvPairs)
}

func recordAirdrop(ctx context.Context) {
	metrics.RecordCount(ctx, airdropCountMetricName, 1)
}
