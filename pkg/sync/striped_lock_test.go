package sync

import (
	"fmt"
	base "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStripedLock_HappyPath(t *testing.T) {
	workerCount := 64
	operationCount := 10000

	l := NewStripedLock(4)

	var workerWg base.WaitGroup
	startChan := make(chan struct{})
	data := make([]int, workerCount)

	for i := 0; i < workerCount; i++ {
		workerWg.Add(1)

		go func(workerID int) {
			defer workerWg.Done()

			var opWg base.WaitGroup
			key := []byte(fmt.Sprintf("worker%d", workerID))
			for j := 0; j < operationCount; j++ {
				opWg.Add(1)

				go func() {
					defer opWg.Done()

					<-startChan

					mu := l.Get(key)
					mu.Lock()
					data[workerID]++
					mu.Unlock()
				}()
			}
			opWg.Wait()
		}(i)
	}

	close(startChan)
	workerWg.Wait()

	for _, val := range data {
		assert.EqualValues(t, operationCount, val)
	}
}

func TestStripedLock_LockAll(t *testing.T) {
	workerCount := 32
	operationCount := 1000

	l := NewStripedLock(8)

	a, b := []byte("account-a"), []byte("account-b")
	var balanceA, balanceB int

	var wg base.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			for j := 0; j < operationCount; j++ {
				// Alternate the key order between workers, which would
				// deadlock without ordered acquisition.
				keys := []LockedKey{{Key: a, Exclusive: true}, {Key: b, Exclusive: true}}
				if workerID%2 == 0 {
					keys[0], keys[1] = keys[1], keys[0]
				}

				unlock := l.LockAll(keys...)
				balanceA--
				balanceB++
				unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, -workerCount*operationCount, balanceA)
	assert.Equal(t, workerCount*operationCount, balanceB)
}

func TestStripedLock_LockAllDuplicates(t *testing.T) {
	l := NewStripedLock(1)

	done := make(chan struct{})
	go func() {
		unlock := l.LockAll(
			LockedKey{Key: []byte("x")},
			LockedKey{Key: []byte("x"), Exclusive: true},
			LockedKey{Key: []byte("y")},
		)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked on a shared stripe")
	}

	// Shared acquisitions don't exclude each other.
	unlock1 := l.LockAll(LockedKey{Key: []byte("x")})
	unlock2 := l.LockAll(LockedKey{Key: []byte("x")})
	unlock2()
	unlock1()
}
