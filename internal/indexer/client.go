// Package indexer queries a third-party indexing service for the historical
// backlog of chat events, already decoded server-side.
package indexer

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

// Row is one pre-decoded event row from the indexer.
type Row struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // RFC3339 or epoch seconds; parsed by the source layer
	TxHash    string `json:"txHash"`
}

const eventsQuery = `query ChatEvents($contract: String!) {
  chatEvents(contractId: $contract, orderBy: TIMESTAMP_ASC) {
    id
    sender
    content
    timestamp
    txHash
  }
}`

type Client struct {
	url    string
	token  string
	client *http.Client
}

func New(url, token string, timeout time.Duration) *Client {
	return &Client{
		url:    strings.TrimRight(url, "/"),
		token:  token,
		client: util.NewHTTPClient(timeout),
	}
}

// ContractEvents returns every indexed chat event for the contract.
func (c *Client) ContractEvents(ctx context.Context, contractID string) ([]Row, error) {
	body, err := json.Marshal(map[string]any{
		"query":     eventsQuery,
		"variables": map[string]string{"contract": contractID},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("indexer http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var env struct {
		Data struct {
			ChatEvents []Row `json:"chatEvents"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("indexer decode: %w", err)
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("indexer: %s", env.Errors[0].Message)
	}
	return env.Data.ChatEvents, nil
}
