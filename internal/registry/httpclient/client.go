// Package httpclient adapts a remote ownership registry service to the
// OwnershipGate contract over JSON HTTP.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/platform/timeouts"
)

// Client provides access to a remote ownership registry API.
type Client struct {
	baseURL    string
	operator   string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// New creates an ownership registry client. The operator identity is the
// marketplace's own identity, used for approval queries.
func New(baseURL, operator string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		operator: operator,
		httpClient: &http.Client{
			Timeout: timeouts.RegistryRequest,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for read queries.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

type ownerResponse struct {
	Owner string `json:"owner"`
}

type approvalResponse struct {
	Approved bool `json:"approved"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// OwnerOf returns the current owner of the asset.
func (c *Client) OwnerOf(ctx context.Context, key market.AssetKey) (string, error) {
	var out ownerResponse
	if err := c.getJSON(ctx, c.tokenPath(key)+"/owner", &out); err != nil {
		return "", err
	}
	return out.Owner, nil
}

// IsApprovedForMarketplace reports whether the marketplace operator holds
// transfer approval for the asset.
func (c *Client) IsApprovedForMarketplace(ctx context.Context, key market.AssetKey) (bool, error) {
	path := fmt.Sprintf("%s/approval?operator=%s", c.tokenPath(key), url.QueryEscape(c.operator))
	var out approvalResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return false, err
	}
	return out.Approved, nil
}

// Transfer moves the asset between identities. Transfers are not retried;
// the registry call is not known to be idempotent.
func (c *Client) Transfer(ctx context.Context, key market.AssetKey, from, to string) error {
	body, err := json.Marshal(transferRequest{From: from, To: to})
	if err != nil {
		return fmt.Errorf("encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.tokenPath(key)+"/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transfer %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("registry transfer rejected",
			"asset", key.String(),
			"status", resp.StatusCode,
			"body", string(payload),
		)
		return fmt.Errorf("transfer %s: registry returned status %d", key, resp.StatusCode)
	}
	return nil
}

func (c *Client) tokenPath(key market.AssetKey) string {
	return fmt.Sprintf("/v1/collections/%s/tokens/%d", url.PathEscape(key.Collection), key.TokenID)
}

// getJSON performs a GET with retries on transport errors and 5xx responses.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("registry request failed", "path", path, "attempt", attempt, "error", err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("registry returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("GET %s: registry returned status %d", path, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode registry response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("GET %s: %w", path, lastErr)
}
