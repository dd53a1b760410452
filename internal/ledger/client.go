// Package ledger is a minimal Soroban RPC client covering the two calls the
// feed needs: getLatestLedger for the cursor and getEvents for contract events.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/util"
)

// RawEvent is one entry of a getEvents response, still carrying base64 XDR
// in Topic and Value. Decoding happens in the source layer.
type RawEvent struct {
	Type           string   `json:"type"` // "contract", "system" or "diagnostic"
	Ledger         uint32   `json:"ledger"`
	LedgerClosedAt string   `json:"ledgerClosedAt"` // RFC3339
	ContractID     string   `json:"contractId"`
	ID             string   `json:"id"` // unique event id, dedup key downstream
	PagingToken    string   `json:"pagingToken"`
	Topic          []string `json:"topic"` // base64 XDR ScVals
	Value          string   `json:"value"` // base64 XDR ScVal
	InSuccessful   bool     `json:"inSuccessfulContractCall"`
	TxHash         string   `json:"txHash"`
}

// EventsResult is the payload of a getEvents call.
type EventsResult struct {
	Events       []RawEvent `json:"events"`
	LatestLedger uint32     `json:"latestLedger"`
}

type Client struct {
	url    string
	client *http.Client
}

func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:    strings.TrimRight(url, "/"),
		client: util.NewHTTPClient(timeout),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var env rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: rpc %d: %s", method, env.Error.Code, env.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// LatestSequence returns the sequence of the most recently closed ledger.
func (c *Client) LatestSequence(ctx context.Context) (uint32, error) {
	var res struct {
		Sequence uint32 `json:"sequence"`
	}
	if err := c.call(ctx, "getLatestLedger", nil, &res); err != nil {
		return 0, err
	}
	return res.Sequence, nil
}

// Events fetches contract events for contractID at or after startLedger.
// The returned LatestLedger is the cursor for the next poll.
func (c *Client) Events(ctx context.Context, contractID string, startLedger uint32, limit int) (EventsResult, error) {
	type filter struct {
		Type        string   `json:"type"`
		ContractIDs []string `json:"contractIds"`
	}
	type pagination struct {
		Limit int `json:"limit"`
	}
	params := struct {
		StartLedger uint32      `json:"startLedger"`
		Filters     []filter    `json:"filters"`
		Pagination  *pagination `json:"pagination,omitempty"`
	}{
		StartLedger: startLedger,
		Filters:     []filter{{Type: "contract", ContractIDs: []string{contractID}}},
	}
	if limit > 0 {
		params.Pagination = &pagination{Limit: limit}
	}

	var res EventsResult
	if err := c.call(ctx, "getEvents", params, &res); err != nil {
		return EventsResult{}, err
	}
	return res, nil
}
