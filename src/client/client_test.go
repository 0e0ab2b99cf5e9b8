package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cfdpaper/src/queue"
	"cfdpaper/src/trading"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestSubmitOrderSendsBearerAndDecodesReceipt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/orders", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req trading.OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "AAPL", req.Symbol)
		require.Equal(t, "coid-1", req.ClientOrderID)

		writeJSON(w, http.StatusOK, `{
			"success": true,
			"order": {"id": 7, "status": "filled"},
			"position": {"id": 3},
			"execution_price": "150",
			"required_margin": "150",
			"commission": "1.5",
			"warnings": []
		}`)
	}))
	defer server.Close()

	c := New(server.URL, "tok", 2*time.Second)
	receipt, err := c.SubmitOrder(context.Background(), trading.OrderRequest{
		Symbol: "AAPL", OrderType: "market", Side: "buy", Quantity: decimal.NewFromInt(10), ClientOrderID: "coid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), receipt.OrderID)
	assert.Equal(t, uint(3), receipt.PositionID)
	assert.Equal(t, "filled", receipt.Status)
	assert.True(t, receipt.ExecutionPrice.Equal(decimal.NewFromInt(150)))
}

func TestBusinessRejectionIsNotRetryable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadRequest, `{"error": "order rejected", "code": "validation", "errors": ["insufficient free margin"]}`)
	}))
	defer server.Close()

	_, err := New(server.URL, "tok", 2*time.Second).PlaceOrder(context.Background(), trading.OrderRequest{Symbol: "AAPL"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "insufficient free margin")
	assert.False(t, apiErr.Retryable())
	assert.False(t, queue.IsRetryable(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestStaleQuoteIsRetryableForTheQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error": "market data is stale", "code": "unavailable"}`)
	}))
	defer server.Close()

	_, err := New(server.URL, "tok", 2*time.Second).PlaceOrder(context.Background(), trading.OrderRequest{Symbol: "AAPL"})
	require.Error(t, err)
	assert.True(t, queue.IsRetryable(err))
}

func TestServerErrorsAreRetriedByTransport(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			writeJSON(w, http.StatusBadGateway, `{"error": "upstream"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success": true, "order": {"id": 1, "status": "filled"}, "replayed": true}`)
	}))
	defer server.Close()

	resp, err := New(server.URL, "tok", 2*time.Second).PlaceOrder(context.Background(), trading.OrderRequest{Symbol: "AAPL", ClientOrderID: "coid-2"})
	require.NoError(t, err)
	assert.True(t, resp.Replayed)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestOrderWithoutClientOrderIDIsSentOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusInternalServerError, `{"error": "Internal Server Error", "code": "internal"}`)
	}))
	defer server.Close()

	_, err := New(server.URL, "tok", 2*time.Second).PlaceOrder(context.Background(), trading.OrderRequest{Symbol: "AAPL"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClosePositionIsNotResentAfterTimeout(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// The close commits but the answer arrives after the client gave up.
			time.Sleep(300 * time.Millisecond)
		}
		writeJSON(w, http.StatusOK, `{"success": true, "full_close": true}`)
	}))
	defer server.Close()

	_, err := New(server.URL, "tok", 100*time.Millisecond).ClosePosition(context.Background(), trading.CloseRequest{PositionID: 9})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestAPIErrorRetryableFallsBackToStatus(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: http.StatusServiceUnavailable}).Retryable())
	assert.True(t, (&APIError{StatusCode: http.StatusTooManyRequests}).Retryable())
	assert.False(t, (&APIError{StatusCode: http.StatusNotFound}).Retryable())
	assert.True(t, (&APIError{StatusCode: http.StatusConflict, Code: "conflict"}).Retryable())
	assert.False(t, (&APIError{StatusCode: http.StatusForbidden, Code: "forbidden"}).Retryable())
}

func TestClosePositionAndRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/positions/close":
			var req trading.CloseRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, uint(9), req.PositionID)
			writeJSON(w, http.StatusOK, `{"success": true, "close_quantity": "4", "close_price": "160", "realized_pnl": "40", "remaining_quantity": "6", "full_close": false}`)
		case "/internal/positions/refresh":
			require.Equal(t, "cron-secret", r.Header.Get("X-Internal-Token"))
			writeJSON(w, http.StatusOK, `{"success": true, "updated_count": 2, "symbols_updated": ["AAPL"], "positions_updated": [1, 2], "message": "2 positions updated"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := New(server.URL, "tok", 2*time.Second)

	qty := decimal.NewFromInt(4)
	closed, err := c.ClosePosition(context.Background(), trading.CloseRequest{PositionID: 9, CloseQuantity: &qty})
	require.NoError(t, err)
	assert.True(t, closed.Success)
	assert.True(t, closed.RealizedPnL.Equal(decimal.NewFromInt(40)))
	assert.True(t, closed.RemainingQuantity.Equal(decimal.NewFromInt(6)))
	assert.False(t, closed.FullClose)

	refreshed, err := c.RefreshPositions(context.Background(), "cron-secret", trading.Scope{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.UpdatedCount)
	assert.Equal(t, []uint{1, 2}, refreshed.PositionsUpdated)
}
