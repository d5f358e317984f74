package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := Constant(500 * time.Millisecond)
	for i := uint(1); i < 5; i++ {
		assert.Equal(t, 500*time.Millisecond, s(i))
	}
}

func TestExponential(t *testing.T) {
	s := Exponential(2*time.Second, 3)
	assert.Equal(t, 2*time.Second, s(1))
	assert.Equal(t, 6*time.Second, s(2))
	assert.Equal(t, 18*time.Second, s(3))

	b := BinaryExponential(time.Second)
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 8*time.Second, b(4))

	assert.EqualValues(t, math.MaxInt64, b(200))
}

func TestCapped(t *testing.T) {
	s := Capped(BinaryExponential(time.Second), 5*time.Second)
	assert.Equal(t, time.Second, s(1))
	assert.Equal(t, 4*time.Second, s(3))
	assert.Equal(t, 5*time.Second, s(4))
	assert.Equal(t, 5*time.Second, s(100))
}

func TestWithJitter(t *testing.T) {
	s := WithJitter(Constant(100*time.Millisecond), 0.1)

	var sum time.Duration
	const iterations = 1000
	for i := 0; i < iterations; i++ {
		delay := s(1)
		assert.GreaterOrEqual(t, delay, 90*time.Millisecond)
		assert.LessOrEqual(t, delay, 110*time.Millisecond)
		sum += delay
	}

	mean := sum / iterations
	assert.InDelta(t, float64(100*time.Millisecond), float64(mean), float64(5*time.Millisecond))

	assert.Equal(t, 100*time.Millisecond, WithJitter(Constant(100*time.Millisecond), 0)(1))
}
