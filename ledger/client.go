// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"

	"github.com/solbet-labs/keeper/lib/clock"
	"github.com/solbet-labs/keeper/lib/netutil"
)

// Commitment is how final a ledger read or confirmation must be.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// confirmPollInterval is the delay between signature status polls.
const confirmPollInterval = 500 * time.Millisecond

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Endpoint is the JSON-RPC URL of the ledger node.
	Endpoint string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Commitment applies to reads and to confirmation. Defaults to
	// CommitmentConfirmed.
	Commitment Commitment
	// RequestTimeout bounds each JSON-RPC call. Zero means no bound
	// beyond the caller's context.
	RequestTimeout time.Duration
	// ConfirmTimeout bounds the wait for a sent transaction to reach
	// Commitment. Defaults to 90 seconds.
	ConfirmTimeout time.Duration
	// Clock paces confirmation polling. If nil, the real clock is used.
	Clock clock.Clock
}

// Client is a JSON-RPC client for one ledger node.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	logger         *slog.Logger
	commitment     Commitment
	requestTimeout time.Duration
	confirmTimeout time.Duration
	clock          clock.Clock

	requestID       atomic.Uint64
	zstdUnsupported atomic.Bool
}

// NewClient creates a Client after validating config.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("ledger: Endpoint is required")
	}
	parsed, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("ledger: invalid Endpoint %q: %w", config.Endpoint, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("ledger: Endpoint %q must use http or https", config.Endpoint)
	}

	commitment := config.Commitment
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	if commitment.rank() == 0 {
		return nil, fmt.Errorf("ledger: unknown commitment %q", commitment)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	confirmTimeout := config.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Client{
		endpoint:       config.Endpoint,
		httpClient:     httpClient,
		logger:         logger,
		commitment:     commitment,
		requestTimeout: config.RequestTimeout,
		confirmTimeout: confirmTimeout,
		clock:          clk,
	}, nil
}

// Commitment returns the commitment the client reads and confirms at.
func (c *Client) Commitment() Commitment { return c.commitment }

// CloseIdleConnections drops pooled connections so the next call dials
// fresh. Useful after the node endpoint fails over.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// GetSlot returns the node's current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []any{c.commitmentParam()}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// GetBlockHeight returns the node's current block height.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "getBlockHeight", []any{c.commitmentParam()}, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// Blockhash is a recent blockhash and the last block height at which a
// transaction referencing it can land.
type Blockhash struct {
	Hash                 [32]byte
	LastValidBlockHeight uint64
}

// GetLatestBlockhash returns a blockhash for a new transaction.
func (c *Client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	var response struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{c.commitmentParam()}, &response); err != nil {
		return Blockhash{}, err
	}
	decoded, err := base58.Decode(response.Value.Blockhash)
	if err != nil || len(decoded) != 32 {
		return Blockhash{}, fmt.Errorf("ledger: getLatestBlockhash returned malformed blockhash %q", response.Value.Blockhash)
	}
	result := Blockhash{LastValidBlockHeight: response.Value.LastValidBlockHeight}
	copy(result.Hash[:], decoded)
	return result, nil
}

// MemcmpFilter restricts GetProgramAccounts to accounts whose data
// contains Bytes at Offset.
type MemcmpFilter struct {
	Offset int
	Bytes  []byte
}

// KeyedAccount is one account returned by GetProgramAccounts.
type KeyedAccount struct {
	Address  Address
	Owner    Address
	Lamports uint64
	Data     []byte
}

type rpcAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data     []string `json:"data"`
		Lamports uint64   `json:"lamports"`
		Owner    string   `json:"owner"`
	} `json:"account"`
}

// GetProgramAccounts lists every account owned by program that matches
// all filters. Data is requested zstd-compressed; if the node rejects
// that encoding the client falls back to plain base64 for this and all
// later calls.
func (c *Client) GetProgramAccounts(ctx context.Context, program Address, filters ...MemcmpFilter) ([]KeyedAccount, error) {
	encoding := "base64+zstd"
	if c.zstdUnsupported.Load() {
		encoding = "base64"
	}

	raw, err := c.getProgramAccounts(ctx, program, encoding, filters)
	var rpcErr *RPCError
	if encoding == "base64+zstd" && errors.As(err, &rpcErr) && rpcErr.Code == CodeInvalidParams {
		c.logger.Info("ledger node rejected zstd account encoding, falling back to base64",
			"endpoint", c.endpoint,
			"error", rpcErr.Message,
		)
		c.zstdUnsupported.Store(true)
		raw, err = c.getProgramAccounts(ctx, program, "base64", filters)
	}
	if err != nil {
		return nil, err
	}

	accounts := make([]KeyedAccount, 0, len(raw))
	for _, entry := range raw {
		account, err := decodeKeyedAccount(entry)
		if err != nil {
			return nil, fmt.Errorf("ledger: getProgramAccounts: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (c *Client) getProgramAccounts(ctx context.Context, program Address, encoding string, filters []MemcmpFilter) ([]rpcAccount, error) {
	options := map[string]any{
		"encoding":   encoding,
		"commitment": c.commitment,
	}
	if len(filters) > 0 {
		encoded := make([]map[string]any, 0, len(filters))
		for _, filter := range filters {
			encoded = append(encoded, map[string]any{
				"memcmp": map[string]any{
					"offset": filter.Offset,
					"bytes":  base58.Encode(filter.Bytes),
				},
			})
		}
		options["filters"] = encoded
	}

	var raw []rpcAccount
	if err := c.call(ctx, "getProgramAccounts", []any{program.String(), options}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func decodeKeyedAccount(entry rpcAccount) (KeyedAccount, error) {
	address, err := ParseAddress(entry.Pubkey)
	if err != nil {
		return KeyedAccount{}, err
	}
	owner, err := ParseAddress(entry.Account.Owner)
	if err != nil {
		return KeyedAccount{}, err
	}
	if len(entry.Account.Data) != 2 {
		return KeyedAccount{}, fmt.Errorf("account %s: data is not an [payload, encoding] pair", address)
	}
	payload, err := base64.StdEncoding.DecodeString(entry.Account.Data[0])
	if err != nil {
		return KeyedAccount{}, fmt.Errorf("account %s: %w", address, err)
	}
	switch entry.Account.Data[1] {
	case "base64":
	case "base64+zstd":
		payload, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return KeyedAccount{}, fmt.Errorf("account %s: zstd: %w", address, err)
		}
	default:
		return KeyedAccount{}, fmt.Errorf("account %s: unsupported encoding %q", address, entry.Account.Data[1])
	}
	return KeyedAccount{
		Address:  address,
		Owner:    owner,
		Lamports: entry.Account.Lamports,
		Data:     payload,
	}, nil
}

// SendTransaction submits a signed transaction with preflight
// simulation and returns its signature. Simulation failures come back
// as *RPCError with program logs attached.
func (c *Client) SendTransaction(ctx context.Context, transaction *Transaction) (Signature, error) {
	options := map[string]any{
		"encoding":            "base64",
		"preflightCommitment": c.commitment,
	}
	encoded := base64.StdEncoding.EncodeToString(transaction.Serialize())
	var text string
	if err := c.call(ctx, "sendTransaction", []any{encoded, options}, &text); err != nil {
		return Signature{}, err
	}
	return ParseSignature(text)
}

// SignatureStatus is the node's view of a sent transaction.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus Commitment      `json:"confirmationStatus"`
}

// Failed reports whether the transaction executed with an error.
func (s *SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && !bytes.Equal(s.Err, []byte("null"))
}

// GetSignatureStatuses returns one entry per signature; entries are nil
// for signatures the node has not seen.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(signatures))
	for i, signature := range signatures {
		encoded[i] = signature.String()
	}
	var response struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", []any{encoded}, &response); err != nil {
		return nil, err
	}
	if len(response.Value) != len(signatures) {
		return nil, fmt.Errorf("ledger: getSignatureStatuses returned %d statuses for %d signatures", len(response.Value), len(signatures))
	}
	return response.Value, nil
}

// SubmitAndConfirm signs instructions with signers (the first signer
// pays fees), sends the transaction, and waits for it to reach the
// client's commitment. A transaction that lands but fails returns
// *TransactionError.
func (c *Client) SubmitAndConfirm(ctx context.Context, instructions []Instruction, signers ...Signer) (Signature, error) {
	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return Signature{}, err
	}
	transaction, err := SignTransaction(blockhash.Hash, instructions, signers...)
	if err != nil {
		return Signature{}, err
	}
	signature, err := c.SendTransaction(ctx, transaction)
	if err != nil {
		return Signature{}, err
	}
	c.logger.Debug("transaction sent", "signature", signature.String())
	return signature, c.confirm(ctx, signature, blockhash.LastValidBlockHeight)
}

func (c *Client) confirm(ctx context.Context, signature Signature, lastValidBlockHeight uint64) error {
	deadline := c.clock.Now().Add(c.confirmTimeout)
	for {
		statuses, err := c.GetSignatureStatuses(ctx, signature)
		if err != nil {
			return err
		}
		if status := statuses[0]; status != nil {
			if status.Failed() {
				return &TransactionError{Signature: signature, Err: status.Err}
			}
			if status.ConfirmationStatus.rank() >= c.commitment.rank() {
				return nil
			}
		} else {
			height, err := c.GetBlockHeight(ctx)
			if err != nil {
				return err
			}
			if height > lastValidBlockHeight {
				return fmt.Errorf("%w: %s (height %d > %d)", ErrBlockhashExpired, signature, height, lastValidBlockHeight)
			}
		}

		if !c.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, signature, c.confirmTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(confirmPollInterval):
		}
	}
}

func (c *Client) commitmentParam() map[string]any {
	return map[string]any{"commitment": c.commitment}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs one JSON-RPC request and decodes its result into
// result.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	encoded, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("ledger: failed to encode %s request: %w", method, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("ledger: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return &TransportError{Method: method, StatusCode: response.StatusCode, Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &TransportError{
			Method:     method,
			StatusCode: response.StatusCode,
			Body:       netutil.Truncate(string(body), 512),
			Err:        fmt.Errorf("HTTP %d", response.StatusCode),
		}
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("ledger: malformed %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("ledger: failed to decode %s result: %w", method, err)
	}
	return nil
}

// zstdDecoder is shared across calls; zstd.Decoder is safe for
// concurrent DecodeAll.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("ledger: zstd decoder initialization failed: " + err.Error())
	}
}
