package tidio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/FFD-Group/Tidio-Products/internal/config"
	"github.com/FFD-Group/Tidio-Products/internal/domain"
)

const (
	clientIDHeader     = "X-Tidio-Openapi-Client-Id"
	clientSecretHeader = "X-Tidio-Openapi-Client-Secret"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4096

// DeliveryError carries the status code and response body of a rejected
// batch. The client never retries; retry is the sync engine's job via the
// manifest.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("tidio rejected batch: status %d: %s", e.StatusCode, e.Body)
}

// Client delivers product batches to the Tidio batch endpoint, enforcing a
// minimum interval between request initiations across its lifetime.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	clientSecret  string
	acceptVersion string
	maxBatchSize  int
	limiter       *rate.Limiter
	logger        *slog.Logger
}

func NewClient(cfg config.TidioConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:       cfg.BaseURL,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		acceptVersion: cfg.AcceptVersion,
		maxBatchSize:  cfg.MaxBatchSize,
		// Burst 1: the first call goes straight through, every later call
		// waits out the remainder of the interval.
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		logger:  logger.With("destination", "tidio"),
	}
}

type batchRequest struct {
	Products []domain.Product `json:"products"`
}

// Deliver sends one batch. Oversized batches are rejected before any
// network call. The limiter is consumed before the request is issued, so
// the initiation rate is bounded regardless of response latency.
func (c *Client) Deliver(ctx context.Context, products []domain.Product) error {
	if len(products) > c.maxBatchSize {
		return fmt.Errorf("batch of %d products exceeds maximum of %d", len(products), c.maxBatchSize)
	}

	body, err := json.Marshal(batchRequest{Products: products})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/products/batch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json; version="+c.acceptVersion)
	req.Header.Set(clientIDHeader, c.clientID)
	req.Header.Set(clientSecretHeader, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Debug("delivered batch",
		"products", len(products),
		"status", resp.StatusCode,
		"took", time.Since(start),
	)
	return nil
}
