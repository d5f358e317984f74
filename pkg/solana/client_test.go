package solana

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/square-program/pkg/retry"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			s: SignatureStatus{Slot: 10, Confirmations: &zero},
		},
		{
			s: SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: "random"},
		},
		{
			s: SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusProcessed},
		},
		{
			s:         SignatureStatus{Slot: 10, Confirmations: &one},
			confirmed: true,
		},
		{
			s:         SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusConfirmed},
			confirmed: true,
		},
		{
			s:         SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusFinalized},
			confirmed: true,
			finalized: true,
		},
		{
			s:         SignatureStatus{Slot: 10},
			confirmed: true,
			finalized: true,
		},
	}

	for i, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed(), "case %d", i)
		assert.Equal(t, tc.finalized, tc.s.Finalized(), "case %d", i)

		assert.True(t, tc.s.Reached(CommitmentProcessed), "case %d", i)
		assert.Equal(t, tc.confirmed, tc.s.Reached(CommitmentConfirmed), "case %d", i)
		assert.Equal(t, tc.finalized, tc.s.Reached(CommitmentFinalized), "case %d", i)
	}
}

func TestCommitmentFromString(t *testing.T) {
	assert.Equal(t, CommitmentProcessed, CommitmentFromString("processed"))
	assert.Equal(t, CommitmentConfirmed, CommitmentFromString("confirmed"))
	assert.Equal(t, CommitmentFinalized, CommitmentFromString("finalized"))
	assert.Equal(t, CommitmentConfirmed, CommitmentFromString(""))
	assert.Equal(t, CommitmentConfirmed, CommitmentFromString("max"))
}

func TestClient_GetAccountInfo(t *testing.T) {
	node, c := setupClient(t)

	keys := generateKeys(t, 2)
	owner := public(keys[1])

	node.handle("getAccountInfo", func(params []json.RawMessage) (interface{}, *rpcError) {
		var config map[string]string
		assert.NoError(t, json.Unmarshal(params[1], &config))
		assert.Equal(t, "base64", config["encoding"])
		assert.Equal(t, "confirmed", config["commitment"])

		var address string
		assert.NoError(t, json.Unmarshal(params[0], &address))
		if address != base58.Encode(public(keys[0])) {
			return map[string]interface{}{"value": nil}, nil
		}

		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   890880,
				"owner":      base58.Encode(owner),
				"data":       []string{base64.StdEncoding.EncodeToString([]byte{4, 0, 0, 0}), "base64"},
				"executable": false,
			},
		}, nil
	})

	info, err := c.GetAccountInfo(public(keys[0]), CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 890880, info.Lamports)
	assert.EqualValues(t, owner, info.Owner)
	assert.Equal(t, []byte{4, 0, 0, 0}, info.Data)
	assert.False(t, info.Executable)

	_, err = c.GetAccountInfo(owner, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_GetBalance(t *testing.T) {
	node, c := setupClient(t)

	keys := generateKeys(t, 2)
	node.handle("getBalance", func(params []json.RawMessage) (interface{}, *rpcError) {
		var address string
		assert.NoError(t, json.Unmarshal(params[0], &address))
		if address != base58.Encode(public(keys[0])) {
			return nil, &rpcError{Code: invalidParamCode, Message: "Invalid param: WrongSize"}
		}
		return map[string]interface{}{"value": 1_000_000_000}, nil
	})

	balance, err := c.GetBalance(public(keys[0]))
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, balance)

	_, err = c.GetBalance(public(keys[1]))
	assert.Equal(t, ErrNoBalance, err)
}

func TestClient_SimpleQueries(t *testing.T) {
	node, c := setupClient(t)

	node.handle("getMinimumBalanceForRentExemption", func(params []json.RawMessage) (interface{}, *rpcError) {
		var size uint64
		assert.NoError(t, json.Unmarshal(params[0], &size))
		return (128 + size) * 3480 * 2, nil
	})
	node.handle("getSlot", func(params []json.RawMessage) (interface{}, *rpcError) {
		var config Commitment
		assert.NoError(t, json.Unmarshal(params[0], &config))
		assert.Equal(t, CommitmentFinalized, config)
		return 1234, nil
	})

	lamports, err := c.GetMinimumBalanceForRentExemption(4)
	require.NoError(t, err)
	assert.EqualValues(t, 918720, lamports)

	slot, err := c.GetSlot(CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, 1234, slot)
}

func TestClient_RequestAirdrop(t *testing.T) {
	node, c := setupClient(t)

	expected := Signature{1, 2, 3}
	node.handle("requestAirdrop", func(params []json.RawMessage) (interface{}, *rpcError) {
		var lamports uint64
		assert.NoError(t, json.Unmarshal(params[1], &lamports))
		if lamports == 0 {
			return base58.Encode(make([]byte, 64)), nil
		}
		return base58.Encode(expected[:]), nil
	})

	account := public(generateKeys(t, 1)[0])

	sig, err := c.RequestAirdrop(account, 10, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, expected, sig)

	_, err = c.RequestAirdrop(account, 0, CommitmentConfirmed)
	assert.Error(t, err)
}

func TestClient_RetriesUnavailableNode(t *testing.T) {
	node, c := setupClient(t)

	node.handle("getSlot", func([]json.RawMessage) (interface{}, *rpcError) {
		if node.count("getSlot") < 3 {
			return nil, &rpcError{Code: 429, Message: "Too many requests"}
		}
		return 7, nil
	})

	slot, err := c.GetSlot(CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 7, slot)
	assert.Equal(t, 3, node.count("getSlot"))

	node.handle("getMinimumBalanceForRentExemption", func([]json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: rpcNodeUnhealthyCode, Message: "Node is unhealthy"}
	})

	_, err = c.GetMinimumBalanceForRentExemption(4)
	assert.True(t, errors.Is(err, errServiceError))
	assert.Equal(t, 3, node.count("getMinimumBalanceForRentExemption"))

	node.handle("getBalance", func([]json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "unexpected"}
	})

	_, err = c.GetBalance(public(generateKeys(t, 1)[0]))
	assert.Error(t, err)
	assert.Equal(t, 1, node.count("getBalance"))
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	node, c := setupClient(t)

	expected := Blockhash{9, 9, 9}
	node.handle("getLatestBlockhash", func([]json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"blockhash":            base58.Encode(expected[:]),
				"lastValidBlockHeight": 300,
			},
		}, nil
	})

	for i := 0; i < 5; i++ {
		hash, err := c.GetLatestBlockhash()
		require.NoError(t, err)
		assert.Equal(t, expected, hash)
	}
	assert.Equal(t, 1, node.count("getLatestBlockhash"))
}

func TestClient_SubmitTransaction(t *testing.T) {
	node, c := setupClient(t)

	keys := generateKeys(t, 2)
	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true)))
	require.NoError(t, tx.Sign(keys[0]))

	send := func(reject bool) rpcHandler {
		return func(params []json.RawMessage) (interface{}, *rpcError) {
			var encoded string
			assert.NoError(t, json.Unmarshal(params[0], &encoded))

			raw, err := base58.Decode(encoded)
			assert.NoError(t, err)

			var submitted Transaction
			assert.NoError(t, submitted.Unmarshal(raw))
			assert.True(t, submitted.VerifySignatures())

			if reject {
				return nil, &rpcError{
					Code:    -32002,
					Message: "Transaction simulation failed: Error processing Instruction 0: incorrect program id for instruction",
					Data: map[string]interface{}{
						"err":  map[string]interface{}{"InstructionError": []interface{}{0, "IncorrectProgramId"}},
						"logs": []string{},
					},
				}
			}
			return base58.Encode(submitted.Signatures[0][:]), nil
		}
	}

	node.handle("sendTransaction", send(false))
	sig, err := c.SubmitTransaction(tx, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)

	node.handle("sendTransaction", send(true))
	sig, err = c.SubmitTransaction(tx, CommitmentConfirmed)
	assert.Equal(t, tx.Signatures[0], sig)

	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, TransactionErrorInstructionError, txErr.ErrorKey())
	assert.True(t, errors.Is(err, ErrIncorrectProgramID))
}

func TestClient_GetTransaction(t *testing.T) {
	node, c := setupClient(t)

	keys := generateKeys(t, 2)
	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true)))
	require.NoError(t, tx.Sign(keys[0]))

	node.handle("getTransaction", func(params []json.RawMessage) (interface{}, *rpcError) {
		var sig string
		assert.NoError(t, json.Unmarshal(params[0], &sig))
		if sig != base58.Encode(tx.Signatures[0][:]) {
			return nil, nil
		}

		return map[string]interface{}{
			"slot":        42,
			"blockTime":   1700000000,
			"transaction": []string{base64.StdEncoding.EncodeToString(tx.Marshal()), "base64"},
			"meta": map[string]interface{}{
				"err":          map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 7}}},
				"fee":          5000,
				"preBalances":  []uint64{1000000, 1},
				"postBalances": []uint64{995000, 1},
				"logMessages":  []string{"Program log: hello"},
			},
		}, nil
	})

	confirmed, err := c.GetTransaction(tx.Signatures[0], CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 42, confirmed.Slot)
	require.NotNil(t, confirmed.BlockTime)
	assert.EqualValues(t, 1700000000, confirmed.BlockTime.Unix())
	assert.Equal(t, tx.Signatures, confirmed.Transaction.Signatures)

	require.NotNil(t, confirmed.Meta)
	assert.EqualValues(t, 5000, confirmed.Meta.Fee)
	assert.Equal(t, []string{"Program log: hello"}, confirmed.Meta.LogMessages)

	require.NotNil(t, confirmed.Err)
	require.NotNil(t, confirmed.Err.InstructionError())
	assert.Equal(t, CustomError(7), *confirmed.Err.InstructionError().CustomError())

	_, err = c.GetTransaction(Signature{1}, CommitmentConfirmed)
	assert.Equal(t, ErrSignatureNotFound, err)
}

func TestClient_GetSignatureStatus(t *testing.T) {
	zero, one := 0, 1
	responses := []interface{}{
		nil,
		nil,
		map[string]interface{}{"slot": 5, "confirmations": zero, "confirmationStatus": "processed", "err": nil},
		map[string]interface{}{"slot": 5, "confirmations": one, "confirmationStatus": "confirmed", "err": nil},
	}

	for _, tc := range []struct {
		commitment Commitment
		confirmed  bool
		polls      int
	}{
		{CommitmentProcessed, false, 3},
		{CommitmentConfirmed, true, 4},
	} {
		node, c := setupClient(t)

		node.handle("getSignatureStatuses", func(params []json.RawMessage) (interface{}, *rpcError) {
			var sigs []string
			assert.NoError(t, json.Unmarshal(params[0], &sigs))
			assert.Len(t, sigs, 1)

			// The call being served is already counted.
			poll := node.count("getSignatureStatuses") - 1
			if poll >= len(responses) {
				poll = len(responses) - 1
			}
			return map[string]interface{}{"value": []interface{}{responses[poll]}}, nil
		})

		status, err := c.GetSignatureStatus(Signature{1}, tc.commitment)
		require.NoError(t, err)
		assert.Equal(t, tc.confirmed, status.Confirmed())
		assert.EqualValues(t, 5, status.Slot)
		assert.Equal(t, tc.polls, node.count("getSignatureStatuses"))
	}
}

func TestClient_GetSignatureStatus_Failed(t *testing.T) {
	node, c := setupClient(t)

	node.handle("getSignatureStatuses", func([]json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"slot":               8,
					"confirmations":      0,
					"confirmationStatus": "processed",
					"err":                map[string]interface{}{"InstructionError": []interface{}{0, "IncorrectProgramId"}},
				},
			},
		}, nil
	})

	status, err := c.GetSignatureStatus(Signature{1}, CommitmentFinalized)
	require.NoError(t, err)
	require.NotNil(t, status.ErrorResult)
	assert.True(t, errors.Is(status.ErrorResult, ErrIncorrectProgramID))
	assert.Equal(t, 1, node.count("getSignatureStatuses"))
}

func TestClient_GetSignatureStatus_NotFound(t *testing.T) {
	node, c := setupClient(t)

	node.handle("getSignatureStatuses", func([]json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{"value": []interface{}{nil}}, nil
	})

	_, err := c.GetSignatureStatus(Signature{1}, CommitmentConfirmed)
	assert.Equal(t, ErrSignatureNotFound, err)
	assert.Equal(t, sigStatusPollLimit, node.count("getSignatureStatuses"))
}

func TestClient_GetSignatureStatuses(t *testing.T) {
	node, c := setupClient(t)

	node.handle("getSignatureStatuses", func(params []json.RawMessage) (interface{}, *rpcError) {
		var config map[string]bool
		assert.NoError(t, json.Unmarshal(params[1], &config))
		assert.True(t, config["searchTransactionHistory"])

		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{"slot": 3, "confirmations": nil, "confirmationStatus": "finalized", "err": nil},
				nil,
			},
		}, nil
	})

	statuses, err := c.GetSignatureStatuses([]Signature{{1}, {2}})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.NotNil(t, statuses[0])
	assert.True(t, statuses[0].Finalized())
	assert.Nil(t, statuses[0].ErrorResult)
	assert.Nil(t, statuses[1])
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcHandler func(params []json.RawMessage) (interface{}, *rpcError)

// fakeNode is a minimal JSON RPC node serving canned method handlers.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
}

func (n *fakeNode) handle(method string, h rpcHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params []json.RawMessage
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}
	if !ok {
		resp["error"] = &rpcError{Code: -32601, Message: "Method not found"}
	} else if result, rpcErr := h(params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func setupClient(t *testing.T) (*fakeNode, Client) {
	node := &fakeNode{
		handlers: make(map[string]rpcHandler),
		calls:    make(map[string]int),
	}

	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	c := newClient(
		jsonrpc.NewClient(server.URL),
		retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
		),
		0,
	)
	return node, c
}
