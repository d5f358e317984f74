package runtime

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/testutil"
)

func TestInvokeContext_Meter(t *testing.T) {
	programID := testutil.GenerateSolanaKeys(t, 1)[0]
	ctx := newInvokeContext(context.Background(), logrus.NewEntry(logrus.StandardLogger()), programID, 250, 100)

	ctx.Log("first %d", 1)
	ctx.Log("second")
	assert.EqualValues(t, 50, ctx.RemainingUnits())
	assert.EqualValues(t, 200, ctx.ConsumedUnits())
	assert.False(t, ctx.Exceeded())

	ctx.Log("dropped")
	assert.True(t, ctx.Exceeded())
	assert.EqualValues(t, 0, ctx.RemainingUnits())
	assert.Equal(t, []string{"Program log: first 1", "Program log: second"}, ctx.Logs())

	// Exhaustion is latched.
	assert.Equal(t, solana.ErrComputationalBudgetExceeded, ctx.ConsumeUnits(0))
}

func TestInvokeContext_ConsumeUnits(t *testing.T) {
	programID := testutil.GenerateSolanaKeys(t, 1)[0]
	ctx := newInvokeContext(context.Background(), logrus.NewEntry(logrus.StandardLogger()), programID, 10, 100)

	require.NoError(t, ctx.ConsumeUnits(10))
	assert.EqualValues(t, 0, ctx.RemainingUnits())
	assert.False(t, ctx.Exceeded())

	assert.Equal(t, solana.ErrComputationalBudgetExceeded, ctx.ConsumeUnits(1))
	assert.True(t, ctx.Exceeded())
	assert.Empty(t, ctx.Logs())
}

func TestRent(t *testing.T) {
	assert.EqualValues(t, 890_880, MinimumBalanceForRentExemption(0))
	assert.EqualValues(t, 918_720, MinimumBalanceForRentExemption(4))
	assert.True(t, isRentExempt(918_720, 4))
	assert.False(t, isRentExempt(918_719, 4))
}
