// Package relay forwards signed transaction envelopes to the fee-paying
// submission relay. Signing happens client-side; this is a pure pass-through.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/metrics"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/util"
)

// Result is the relay's verdict on a submission.
type Result struct {
	Status string `json:"status"` // e.g. "PENDING", "SUCCESS", "ERROR"
	Hash   string `json:"hash"`   // transaction hash assigned by the network
}

type Options struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

type Client struct {
	url    string
	token  string
	opts   Options
	client *http.Client
}

func New(url, token string, opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Client{
		url:    strings.TrimRight(url, "/"),
		token:  token,
		opts:   opts,
		client: util.NewHTTPClient(opts.Timeout),
	}
}

// Submit posts a base64 transaction envelope to the relay. Retries cover
// transport errors and 5xx; 4xx responses are final (a rejected envelope
// will not get better by resending it).
func (c *Client) Submit(ctx context.Context, envelopeXDR string) (Result, error) {
	if strings.TrimSpace(envelopeXDR) == "" {
		return Result{}, fmt.Errorf("empty transaction envelope")
	}
	body, err := json.Marshal(map[string]string{"xdr": envelopeXDR})
	if err != nil {
		return Result{}, err
	}
	reqID := uuid.NewString()
	log := logrus.WithField("request_id", reqID)

	var res Result
	var final error // non-retryable rejection
	err = util.Retry(ctx, c.opts.MaxRetries, c.opts.Backoff, c.opts.MaxBackoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", reqID)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 == 4 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			final = fmt.Errorf("relay rejected submission: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
			return nil
		}
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("relay http %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return fmt.Errorf("relay decode: %w", err)
		}
		return nil
	})
	if err == nil && final != nil {
		err = final
	}
	if err != nil {
		metrics.RelaySubmit(false)
		log.WithError(err).Warn("relay submission failed")
		return Result{}, err
	}
	metrics.RelaySubmit(true)
	log.WithFields(logrus.Fields{"status": res.Status, "hash": res.Hash}).Info("transaction submitted")
	return res, nil
}
