package osutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCgroupLimit(t *testing.T) {
	for _, tc := range []struct {
		raw   string
		limit uint64
		ok    bool
	}{
		{"536870912\n", 536870912, true},
		{"max\n", 0, false},
		{"9223372036854771712\n", 0, false},
		{"0", 0, false},
		{"", 0, false},
		{"garbage", 0, false},
	} {
		limit, ok := parseCgroupLimit([]byte(tc.raw))
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.limit, limit, tc.raw)
	}
}

func TestFractionOfMemory(t *testing.T) {
	total := GetTotalMemory()
	assert.NotZero(t, total)

	assert.Zero(t, FractionOfMemory(0))
	assert.Zero(t, FractionOfMemory(-1))
	assert.Equal(t, total, FractionOfMemory(2))
	assert.InDelta(t, float64(total)/4, float64(FractionOfMemory(0.25)), 1)
}
