// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"

	"github.com/solbet-labs/keeper/lib/clock"
	"github.com/solbet-labs/keeper/lib/testutil"
)

// rpcHandler answers one JSON-RPC method. Returning a non-nil *RPCError
// sends an error object instead of a result.
type rpcHandler func(params []json.RawMessage) (any, *RPCError)

// fakeNode is a JSON-RPC server that dispatches by method name and
// records every request it sees.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    []string
	params   map[string][][]json.RawMessage
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	node := &fakeNode{
		handlers: make(map[string]rpcHandler),
		params:   make(map[string][][]json.RawMessage),
	}
	server := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(server.Close)
	return node, server
}

func (n *fakeNode) handle(method string, handler rpcHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = handler
}

func (n *fakeNode) callCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, call := range n.calls {
		if call == method {
			count++
		}
	}
	return count
}

func (n *fakeNode) serve(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls = append(n.calls, body.Method)
	n.params[body.Method] = append(n.params[body.Method], body.Params)
	handler, ok := n.handlers[body.Method]
	n.mu.Unlock()

	response := map[string]any{"jsonrpc": "2.0", "id": body.ID}
	if !ok {
		response["error"] = &RPCError{Code: -32601, Message: "Method not found"}
	} else {
		result, rpcErr := handler(body.Params)
		if rpcErr != nil {
			response["error"] = rpcErr
		} else {
			response["result"] = result
		}
	}
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(response)
}

func newTestClient(t *testing.T, endpoint string, clk clock.Clock) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Endpoint:       endpoint,
		Commitment:     CommitmentConfirmed,
		ConfirmTimeout: time.Second,
		Clock:          clk,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		config ClientConfig
	}{
		{"missing endpoint", ClientConfig{}},
		{"websocket scheme", ClientConfig{Endpoint: "wss://node.example"}},
		{"bad commitment", ClientConfig{Endpoint: "https://node.example", Commitment: "max"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewClient(test.config); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGetSlot(t *testing.T) {
	node, server := newFakeNode(t)
	node.handle("getSlot", func(params []json.RawMessage) (any, *RPCError) {
		if len(params) != 1 || !strings.Contains(string(params[0]), `"confirmed"`) {
			t.Errorf("getSlot params = %s, want commitment object", params)
		}
		return 4242, nil
	})

	slot, err := newTestClient(t, server.URL, nil).GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 4242 {
		t.Errorf("slot = %d, want 4242", slot)
	}
}

func accountEntry(address Address, payload []byte, encoding string) map[string]any {
	return map[string]any{
		"pubkey": address.String(),
		"account": map[string]any{
			"data":     []string{base64.StdEncoding.EncodeToString(payload), encoding},
			"lamports": 2039280,
			"owner":    SystemProgramID.String(),
		},
	}
}

func TestGetProgramAccountsZstd(t *testing.T) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	defer encoder.Close()

	program := addressOf(9)
	game := addressOf(1)
	data := []byte("game account bytes, repeated repeated repeated")

	node, server := newFakeNode(t)
	node.handle("getProgramAccounts", func(params []json.RawMessage) (any, *RPCError) {
		var options struct {
			Encoding string `json:"encoding"`
			Filters  []struct {
				Memcmp struct {
					Offset int    `json:"offset"`
					Bytes  string `json:"bytes"`
				} `json:"memcmp"`
			} `json:"filters"`
		}
		if err := json.Unmarshal(params[1], &options); err != nil {
			t.Errorf("decoding options: %v", err)
		}
		if options.Encoding != "base64+zstd" {
			t.Errorf("encoding = %q, want base64+zstd", options.Encoding)
		}
		if len(options.Filters) != 1 || options.Filters[0].Memcmp.Bytes != base58.Encode([]byte{1, 2, 3}) {
			t.Errorf("filters = %+v, want one memcmp of [1 2 3]", options.Filters)
		}
		return []any{accountEntry(game, encoder.EncodeAll(data, nil), "base64+zstd")}, nil
	})

	accounts, err := newTestClient(t, server.URL, nil).GetProgramAccounts(context.Background(), program,
		MemcmpFilter{Offset: 0, Bytes: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("GetProgramAccounts: %v", err)
	}
	want := []KeyedAccount{{Address: game, Owner: SystemProgramID, Lamports: 2039280, Data: data}}
	if diff := cmp.Diff(want, accounts); diff != "" {
		t.Errorf("accounts mismatch (-want +got):\n%s", diff)
	}
}

func TestGetProgramAccountsFallsBackToBase64(t *testing.T) {
	game := addressOf(1)
	data := []byte{0xde, 0xad}

	node, server := newFakeNode(t)
	node.handle("getProgramAccounts", func(params []json.RawMessage) (any, *RPCError) {
		if strings.Contains(string(params[1]), "zstd") {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "unsupported encoding: base64+zstd"}
		}
		return []any{accountEntry(game, data, "base64")}, nil
	})

	client := newTestClient(t, server.URL, nil)
	for pass := range 2 {
		accounts, err := client.GetProgramAccounts(context.Background(), addressOf(9))
		if err != nil {
			t.Fatalf("pass %d: GetProgramAccounts: %v", pass, err)
		}
		if len(accounts) != 1 || string(accounts[0].Data) != string(data) {
			t.Fatalf("pass %d: accounts = %+v", pass, accounts)
		}
	}
	// One rejected zstd attempt, then base64 for both passes.
	if got := node.callCount("getProgramAccounts"); got != 3 {
		t.Errorf("getProgramAccounts called %d times, want 3", got)
	}
}

func TestTransportErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			http.Error(writer, "slow down", http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL, nil).GetSlot(context.Background())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("err = %v, want *TransportError", err)
		}
		if transportErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("StatusCode = %d, want 429", transportErr.StatusCode)
		}
		if !strings.Contains(err.Error(), "Too many requests") {
			t.Errorf("Error() = %q, want rate limit marker", err.Error())
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		endpoint := server.URL
		server.Close()

		_, err := newTestClient(t, endpoint, nil).GetSlot(context.Background())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) || transportErr.StatusCode != 0 {
			t.Fatalf("err = %v, want *TransportError without status", err)
		}
	})
}

func TestSendTransactionSimulationFailure(t *testing.T) {
	node, server := newFakeNode(t)
	node.handle("sendTransaction", func(params []json.RawMessage) (any, *RPCError) {
		data, _ := json.Marshal(map[string]any{
			"err": map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 3012}}},
			"logs": []string{
				"Program rpsx invoke [1]",
				"Program log: AnchorError caused by account: player1_token_account. Error Code: AccountNotInitialized. Error Number: 3012. Error Message: The program expected this account to be already initialized.",
			},
		})
		return nil, &RPCError{
			Code:    CodeSendTransactionPreflightFailure,
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0xbc4",
			Data:    data,
		}
	})

	payer := newTestSigner(1)
	transaction, err := SignTransaction([32]byte{1}, []Instruction{{Program: addressOf(9)}}, payer)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	_, err = newTestClient(t, server.URL, nil).SendTransaction(context.Background(), transaction)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want *RPCError", err)
	}
	for _, marker := range []string{"custom program error: 0xbc4", "Error Number: 3012."} {
		if !strings.Contains(err.Error(), marker) {
			t.Errorf("Error() missing %q:\n%s", marker, err.Error())
		}
	}
}

// confirmingNode wires the methods SubmitAndConfirm needs. status is
// returned verbatim from getSignatureStatuses (nil means not found).
func confirmingNode(t *testing.T, status func() any, height uint64) (*fakeNode, *httptest.Server) {
	t.Helper()
	node, server := newFakeNode(t)
	node.handle("getLatestBlockhash", func([]json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"context": map[string]any{"slot": 10},
			"value": map[string]any{
				"blockhash":            base58.Encode(make([]byte, 32)),
				"lastValidBlockHeight": 150,
			},
		}, nil
	})
	node.handle("sendTransaction", func(params []json.RawMessage) (any, *RPCError) {
		var encoded string
		_ = json.Unmarshal(params[0], &encoded)
		wire, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(wire) < 65 {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "bad transaction"}
		}
		return base58.Encode(wire[1:65]), nil
	})
	node.handle("getSignatureStatuses", func([]json.RawMessage) (any, *RPCError) {
		return map[string]any{"context": map[string]any{"slot": 11}, "value": []any{status()}}, nil
	})
	node.handle("getBlockHeight", func([]json.RawMessage) (any, *RPCError) {
		return height, nil
	})
	return node, server
}

func TestSubmitAndConfirm(t *testing.T) {
	payer := newTestSigner(1)
	instructions := []Instruction{{Program: addressOf(9), Data: []byte{1}}}

	t.Run("confirmed on first poll", func(t *testing.T) {
		_, server := confirmingNode(t, func() any {
			return map[string]any{"slot": 11, "err": nil, "confirmationStatus": "confirmed"}
		}, 100)

		signature, err := newTestClient(t, server.URL, nil).SubmitAndConfirm(context.Background(), instructions, payer)
		if err != nil {
			t.Fatalf("SubmitAndConfirm: %v", err)
		}
		if signature == (Signature{}) {
			t.Error("returned zero signature")
		}
	})

	t.Run("landed with program error", func(t *testing.T) {
		_, server := confirmingNode(t, func() any {
			return map[string]any{
				"slot":               11,
				"err":                map[string]any{"InstructionError": []any{1, map[string]any{"Custom": 6001}}},
				"confirmationStatus": "processed",
			}
		}, 100)

		_, err := newTestClient(t, server.URL, nil).SubmitAndConfirm(context.Background(), instructions, payer)
		var transactionErr *TransactionError
		if !errors.As(err, &transactionErr) {
			t.Fatalf("err = %v, want *TransactionError", err)
		}
		if !strings.Contains(err.Error(), "Instruction 1: custom program error: 0x1771") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("blockhash expired", func(t *testing.T) {
		_, server := confirmingNode(t, func() any { return nil }, 151)

		_, err := newTestClient(t, server.URL, nil).SubmitAndConfirm(context.Background(), instructions, payer)
		if !errors.Is(err, ErrBlockhashExpired) {
			t.Fatalf("err = %v, want ErrBlockhashExpired", err)
		}
	})

	t.Run("confirmation timeout", func(t *testing.T) {
		fake := clock.Fake(time.Unix(1_700_000_000, 0))
		node, server := confirmingNode(t, func() any { return nil }, 100)
		client := newTestClient(t, server.URL, fake)

		result := make(chan error, 1)
		go func() {
			_, err := client.SubmitAndConfirm(context.Background(), instructions, payer)
			result <- err
		}()

		// ConfirmTimeout is one second: two poll intervals.
		fake.WaitForTimers(1)
		fake.Advance(confirmPollInterval)
		fake.WaitForTimers(1)
		fake.Advance(confirmPollInterval)

		err := testutil.RequireReceive(t, result, 5*time.Second, "SubmitAndConfirm result")
		if !errors.Is(err, ErrConfirmationTimeout) {
			t.Fatalf("err = %v, want ErrConfirmationTimeout", err)
		}
		if got := node.callCount("getSignatureStatuses"); got != 3 {
			t.Errorf("polled %d times, want 3", got)
		}
	})
}

func TestDescribeTransactionError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"custom", `{"InstructionError":[0,{"Custom":3012}]}`, "Error processing Instruction 0: custom program error: 0xbc4"},
		{"builtin", `{"InstructionError":[2,"InvalidAccountData"]}`, `Error processing Instruction 2: "InvalidAccountData"`},
		{"other", `"AccountInUse"`, `"AccountInUse"`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := describeTransactionError(json.RawMessage(test.raw)); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}
