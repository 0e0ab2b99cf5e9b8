package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cfdpaper/src/model"
	"cfdpaper/src/queue"
	"cfdpaper/src/trading"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second

	internalTokenHeader = "X-Internal-Token"
)

// OrderResponse is the body of a successful POST /api/orders.
type OrderResponse struct {
	Success        bool            `json:"success"`
	Order          model.Order     `json:"order"`
	Position       *model.Position `json:"position"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	RequiredMargin decimal.Decimal `json:"required_margin"`
	Commission     decimal.Decimal `json:"commission"`
	Warnings       []string        `json:"warnings"`
	Replayed       bool            `json:"replayed"`
}

// CloseResponse is the body of a successful POST /api/positions/close.
type CloseResponse struct {
	Success bool `json:"success"`
	trading.CloseResult
}

// RefreshResponse is the body of POST /internal/positions/refresh.
type RefreshResponse struct {
	Success          bool     `json:"success"`
	UpdatedCount     int      `json:"updated_count"`
	SymbolsUpdated   []string `json:"symbols_updated"`
	PositionsUpdated []uint   `json:"positions_updated"`
	SuspendedUsers   []string `json:"suspended_users"`
	Message          string   `json:"message"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int      `json:"-"`
	Message    string   `json:"error"`
	Code       string   `json:"code,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Errors) > 0 {
		msg = msg + ": " + strings.Join(e.Errors, "; ")
	}
	return fmt.Sprintf("api status %d: %s", e.StatusCode, msg)
}

// Retryable trusts the server's error code and falls back to the status.
func (e *APIError) Retryable() bool {
	if kind, ok := trading.ParseKind(e.Code); ok {
		return kind.Retryable()
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// Client talks to the trading API with a bearer token. Requests the server
// cannot deduplicate go through once, a single-attempt client.
type Client struct {
	http *resty.Client
	once *resty.Client
}

func newRestyClient(baseURL, token string, timeout time.Duration) *resty.Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		httpClient.SetAuthToken(token)
	}
	return httpClient
}

func New(baseURL, token string, timeout time.Duration) *Client {
	retrying := newRestyClient(baseURL, token, timeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		http: retrying,
		once: newRestyClient(baseURL, token, timeout).SetRetryCount(0),
	}
}

// PlaceOrder submits an order. Only requests carrying a client order id are
// retried by the transport; without one a resend could open a second position.
func (c *Client) PlaceOrder(ctx context.Context, req trading.OrderRequest) (*OrderResponse, error) {
	transport := c.http
	if strings.TrimSpace(req.ClientOrderID) == "" {
		transport = c.once
	}

	var out OrderResponse
	if err := post(ctx, transport, "/api/orders", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitOrder adapts PlaceOrder to the order queue.
func (c *Client) SubmitOrder(ctx context.Context, req trading.OrderRequest) (*queue.Receipt, error) {
	resp, err := c.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	receipt := &queue.Receipt{
		OrderID:        resp.Order.ID,
		Status:         resp.Order.Status,
		ExecutionPrice: resp.ExecutionPrice,
		Replayed:       resp.Replayed,
	}
	if resp.Position != nil {
		receipt.PositionID = resp.Position.ID
	}
	return receipt, nil
}

// ClosePosition is sent exactly once. A close has no idempotency key, so the
// caller decides whether to retry after checking Positions.
func (c *Client) ClosePosition(ctx context.Context, req trading.CloseRequest) (*CloseResponse, error) {
	var out CloseResponse
	if err := post(ctx, c.once, "/api/positions/close", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Positions(ctx context.Context) ([]model.Position, error) {
	var out struct {
		Positions []model.Position `json:"positions"`
	}
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(apiErr).
		Get("/api/positions")
	if err := checkResponse(resp, err, apiErr); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// RefreshPositions triggers a mark-to-market run with the internal token.
func (c *Client) RefreshPositions(ctx context.Context, internalToken string, scope trading.Scope) (*RefreshResponse, error) {
	var out RefreshResponse
	headers := map[string]string{internalTokenHeader: internalToken}
	if err := post(ctx, c.http, "/internal/positions/refresh", scope, &out, headers); err != nil {
		return nil, err
	}
	return &out, nil
}

func post(ctx context.Context, transport *resty.Client, path string, body, result interface{}, headers map[string]string) error {
	apiErr := &APIError{}
	resp, err := transport.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(result).
		SetError(apiErr).
		Post(path)
	return checkResponse(resp, err, apiErr)
}

func checkResponse(resp *resty.Response, err error, apiErr *APIError) error {
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}

// isRetryableResp retries transport errors, 5xx, 429 and 408.
func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	return (code >= 500 && code <= 599) || code == 429 || code == 408
}
