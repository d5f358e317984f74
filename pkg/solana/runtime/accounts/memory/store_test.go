package memory

import (
	"testing"

	"github.com/code-payments/square-program/pkg/solana/runtime/accounts/tests"
)

func TestAccountMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
