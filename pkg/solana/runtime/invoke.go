package runtime

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/square-program/pkg/solana"
)

// Entrypoint is the host ABI of a program: it receives the program's own
// id, the accounts referenced by the instruction, and the raw instruction
// data.
type Entrypoint func(ctx *InvokeContext, programID ed25519.PublicKey, accounts []*AccountInfo, instructionData []byte) error

// InvokeContext carries the compute meter and log collector of a single
// program invocation.
type InvokeContext struct {
	ctx       context.Context
	log       *logrus.Entry
	programID ed25519.PublicKey

	limit     uint64
	remaining uint64
	logCost   uint64
	exceeded  bool

	logs []string
}

func newInvokeContext(ctx context.Context, log *logrus.Entry, programID ed25519.PublicKey, limit, logCost uint64) *InvokeContext {
	return &InvokeContext{
		ctx:       ctx,
		log:       log,
		programID: programID,
		limit:     limit,
		remaining: limit,
		logCost:   logCost,
	}
}

// Context returns the context of the transaction being processed.
func (c *InvokeContext) Context() context.Context {
	return c.ctx
}

// Log records a program log line, charging the configured log cost. Once
// the budget is exhausted further lines are dropped.
func (c *InvokeContext) Log(format string, args ...interface{}) {
	if c.ConsumeUnits(c.logCost) != nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	c.logs = append(c.logs, "Program log: "+msg)
	c.log.WithField("program", base58.Encode(c.programID)).Debug(msg)
}

// ConsumeUnits charges n compute units. Exhaustion is sticky: the host fails
// the instruction regardless of what the program returns afterwards.
func (c *InvokeContext) ConsumeUnits(n uint64) error {
	if c.exceeded {
		return solana.ErrComputationalBudgetExceeded
	}

	if n > c.remaining {
		c.remaining = 0
		c.exceeded = true
		return solana.ErrComputationalBudgetExceeded
	}

	c.remaining -= n
	return nil
}

func (c *InvokeContext) RemainingUnits() uint64 {
	return c.remaining
}

func (c *InvokeContext) ConsumedUnits() uint64 {
	return c.limit - c.remaining
}

// Exceeded reports whether the compute budget was exhausted.
func (c *InvokeContext) Exceeded() bool {
	return c.exceeded
}

// Logs returns the program log lines recorded so far.
func (c *InvokeContext) Logs() []string {
	return c.logs
}
