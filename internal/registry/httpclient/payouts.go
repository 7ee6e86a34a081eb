package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/platform/id"
	"github.com/longhan2109/nft-marketplace/internal/platform/timeouts"
)

// PayoutClient adapts a remote payout rail to the PayoutSender contract.
//
// Sends are not retried; each request carries a fresh idempotency key so
// the rail can deduplicate if the caller retries at a higher level.
type PayoutClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPayoutClient creates a payout rail client.
func NewPayoutClient(baseURL string, opts ...PayoutOption) *PayoutClient {
	c := &PayoutClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeouts.RegistryRequest,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PayoutOption configures a PayoutClient.
type PayoutOption func(*PayoutClient)

// WithPayoutTimeout sets the HTTP client timeout.
func WithPayoutTimeout(d time.Duration) PayoutOption {
	return func(c *PayoutClient) {
		c.httpClient.Timeout = d
	}
}

// WithPayoutLogger sets the logger.
func WithPayoutLogger(logger *slog.Logger) PayoutOption {
	return func(c *PayoutClient) {
		c.logger = logger
	}
}

// WithPayoutHTTPClient sets a custom HTTP client.
func WithPayoutHTTPClient(hc *http.Client) PayoutOption {
	return func(c *PayoutClient) {
		c.httpClient = hc
	}
}

type payoutRequest struct {
	Recipient      string `json:"recipient"`
	Amount         uint64 `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Send transfers the amount to the recipient on the payout rail.
func (c *PayoutClient) Send(ctx context.Context, recipient string, amount uint64) error {
	key, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate idempotency key: %w", err)
	}

	body, err := json.Marshal(payoutRequest{
		Recipient:      recipient,
		Amount:         amount,
		IdempotencyKey: key,
	})
	if err != nil {
		return fmt.Errorf("encode payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send payout to %s: %w", recipient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("payout rejected",
			"recipient", recipient,
			"status", resp.StatusCode,
			"body", string(payload),
		)
		return fmt.Errorf("send payout to %s: rail returned status %d", recipient, resp.StatusCode)
	}
	return nil
}
