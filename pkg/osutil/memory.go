// Package osutil inspects the host the process runs on.
package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// cgroup v1 reports this value, rounded to the page size, when no limit is
// set.
const unrestrictedV1Limit = 9223372036854771712

var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",                   // v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // v1
}

// GetTotalMemory returns the memory available to the process in bytes,
// honouring a container memory limit when one is set.
func GetTotalMemory() uint64 {
	total := memory.TotalMemory()
	for _, path := range cgroupLimitFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if limit, ok := parseCgroupLimit(raw); ok && limit < total {
			return limit
		}
	}
	return total
}

// FractionOfMemory returns fraction of GetTotalMemory, with fraction clamped
// to [0, 1].
func FractionOfMemory(fraction float64) uint64 {
	switch {
	case fraction <= 0:
		return 0
	case fraction > 1:
		fraction = 1
	}
	return uint64(fraction * float64(GetTotalMemory()))
}

func parseCgroupLimit(raw []byte) (uint64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(s, 10, 64)
	if err != nil || limit == 0 || limit >= unrestrictedV1Limit {
		return 0, false
	}
	return limit, true
}
