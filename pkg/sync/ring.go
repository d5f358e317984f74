package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring mapping keys onto stripe indexes
type ring struct {
	hashRing *treemap.Map

	// minStripe caches the value of the min entry in hashRing, since
	// treemap.Map.Min() is O(log n).
	minStripe int
}

// newRing returns a ring where every named stripe has replicationFactor
// virtual entries
func newRing(stripes map[string]int, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for name, stripe := range stripes {
		nameHash, _ := murmur3.Sum128([]byte(name))

		var entry [12]byte
		binary.LittleEndian.PutUint64(entry[:8], nameHash)
		for i := uint32(0); i < uint32(replicationFactor); i++ {
			binary.LittleEndian.PutUint32(entry[8:], i)
			hash, _ := murmur3.Sum128(entry[:])
			hashRing.Put(int64(hash), stripe)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minStripe := hashRing.Min(); minStripe != nil {
		r.minStripe = minStripe.(int)
	}
	return r
}

// shard consistently hashes the key onto a stripe
func (r *ring) shard(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	if _, stripe := r.hashRing.Ceiling(int64(raw)); stripe != nil {
		return stripe.(int)
	}
	return r.minStripe
}
