// Package vending implements the HTTP client for the vending backend.
package vending

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/config"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/google/uuid"
)

// RequestIDHeader correlates a client request with backend logs.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// Client talks to the vending backend. It keeps no session state.
type Client struct {
	httpClient   *http.Client
	newRequestID func() string
	baseURL      string
	abortPath    string
	retry        service.RetryOptions
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryOptions sets the retry policy used for catalog reads.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(c *Client) {
		c.retry = opts
	}
}

// WithRequestIDs overrides how X-Request-ID values are generated.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		c.newRequestID = gen
	}
}

// NewClient creates a backend client from validated configuration.
func NewClient(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	attempts := cfg.CatalogRetries
	if attempts < 1 {
		attempts = 1
	}

	c := &Client{
		baseURL:   cfg.BaseURL,
		abortPath: cfg.AbortPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: service.RetryOptions{
			MaxAttempts:  attempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
		newRequestID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ListProducts returns the catalog. Sold-out products are included only when asked for.
func (c *Client) ListProducts(ctx context.Context, includeSoldOut bool) ([]model.Product, error) {
	path := "/products"
	if includeSoldOut {
		path = "/products/all"
	}

	var dtos []productDTO
	if err := c.read(ctx, "list products", path, &dtos); err != nil {
		return nil, err
	}

	products := make([]model.Product, 0, len(dtos))
	for _, dto := range dtos {
		products = append(products, dto.toModel())
	}
	return products, nil
}

// ListMoneyStock returns how many of each denomination the machine holds.
func (c *Client) ListMoneyStock(ctx context.Context) ([]model.MoneyStock, error) {
	var dtos []moneyStockDTO
	if err := c.read(ctx, "list money stock", "/money-stock", &dtos); err != nil {
		return nil, err
	}

	stock := make([]model.MoneyStock, 0, len(dtos))
	for _, dto := range dtos {
		stock = append(stock, dto.toModel())
	}
	return stock, nil
}

// SelectProduct opens a backend session for productID and returns its id.
func (c *Client) SelectProduct(ctx context.Context, productID int) (string, error) {
	const op = "select product"

	var resp selectResponse
	if err := c.do(ctx, op, http.MethodPost, "/select-product", selectRequest{ProductID: productID}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("%s: %w: missing session_id", op, common.ErrUnexpectedResponse)
	}
	return resp.SessionID, nil
}

// InsertMoney credits denom to the session and returns the backend's running total.
func (c *Client) InsertMoney(ctx context.Context, sessionID string, denom model.Denomination) (int, error) {
	const op = "insert money"

	var resp insertResponse
	req := insertRequest{SessionID: sessionID, Denom: int(denom)}
	if err := c.do(ctx, op, http.MethodPost, "/insert-money", req, &resp); err != nil {
		return 0, err
	}
	if resp.InsertedAmount == nil {
		return 0, fmt.Errorf("%s: %w: missing inserted_amount", op, common.ErrUnexpectedResponse)
	}
	return *resp.InsertedAmount, nil
}

// Confirm completes the session's purchase.
func (c *Client) Confirm(ctx context.Context, sessionID string) (model.TransactionResult, error) {
	const op = "confirm"

	var resp confirmResponse
	if err := c.do(ctx, op, http.MethodPost, "/confirm", sessionRequest{SessionID: sessionID}, &resp); err != nil {
		return model.TransactionResult{}, err
	}
	if resp.Status != model.PurchaseStatusSuccess {
		return model.TransactionResult{}, fmt.Errorf("%s: %w: status %q", op, common.ErrUnexpectedResponse, resp.Status)
	}
	return resp.toModel(), nil
}

// AbortSession tells the backend the session was abandoned. It requires backend.abort_path.
func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	if c.abortPath == "" {
		return fmt.Errorf("abort session: %w: backend.abort_path", common.ErrMissingConfig)
	}
	return c.do(ctx, "abort session", http.MethodPost, c.abortPath, sessionRequest{SessionID: sessionID}, nil)
}

// read issues an idempotent GET, retrying transport failures and server errors.
func (c *Client) read(ctx context.Context, op, path string, out any) error {
	if c.retry.MaxAttempts <= 1 {
		return c.do(ctx, op, http.MethodGet, path, nil, out)
	}
	return common.WithRetry(ctx, func() error {
		return classifyForRetry(c.do(ctx, op, http.MethodGet, path, nil, out))
	}, c.retry)
}

// do performs one request/response exchange. out may be nil when the body is ignored.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	requestID := c.newRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		common.LogDebug("backend request failed", common.Fields{
			"op":         op,
			"request_id": requestID,
			"error":      err,
		})
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	common.LogDebug("backend request", common.Fields{
		"op":          op,
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"request_id":  requestID,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(op, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %w", op, common.ErrUnexpectedResponse, err)
	}
	return nil
}

// classifyForRetry keeps transport failures and server errors retryable and
// stops on everything else.
func classifyForRetry(err error) error {
	if err == nil {
		return nil
	}

	if common.IsRetryable(err) {
		return &common.RetryableError{Err: err, Retryable: true}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Temporary() {
		return &common.RetryableError{Err: err, Retryable: true}
	}

	return common.Permanent(err)
}
