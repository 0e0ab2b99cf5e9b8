package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cfdpaper/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	feedRetryAttempts   = 3
	feedRetryBaseDelay  = 300 * time.Millisecond
	feedRetryMaxBackoff = 3 * time.Second
)

// feedQuote is one entry of GET /quotes?symbols=A,B.
type feedQuote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Open      decimal.Decimal `json:"open"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

type feedResponse struct {
	Quotes []feedQuote `json:"quotes"`
	Error  string      `json:"error,omitempty"`
}

// HTTPFeedProvider polls a JSON quote feed.
type HTTPFeedProvider struct {
	http *resty.Client
}

func NewHTTPFeedProvider(baseURL string, timeout time.Duration) *HTTPFeedProvider {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(feedRetryAttempts - 1).
		SetRetryWaitTime(feedRetryBaseDelay).
		SetRetryMaxWaitTime(feedRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &HTTPFeedProvider{http: httpClient}
}

func (*HTTPFeedProvider) Name() string { return ProviderHTTP }

func (p *HTTPFeedProvider) Quotes(ctx context.Context, symbols []string) ([]model.MarketQuote, error) {
	var out feedResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetResult(&out).
		SetError(&out).
		Get("/quotes")
	if err != nil {
		return nil, fmt.Errorf("quote feed request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote feed status %d: %s", resp.StatusCode(), out.Error)
	}

	fetchedAt := time.Now().UTC()
	quotes := make([]model.MarketQuote, 0, len(out.Quotes))
	for _, q := range out.Quotes {
		symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
		if symbol == "" || !q.Price.IsPositive() {
			logger.WithFields(map[string]interface{}{
				"provider": ProviderHTTP,
				"symbol":   q.Symbol,
				"price":    q.Price.String(),
			}).Warn("Dropping invalid quote")
			continue
		}
		updatedAt := fetchedAt
		if !q.Timestamp.IsZero() {
			updatedAt = q.Timestamp.UTC()
		}
		quotes = append(quotes, model.MarketQuote{
			Symbol:    symbol,
			Price:     q.Price,
			Bid:       q.Bid,
			Ask:       q.Ask,
			High:      q.High,
			Low:       q.Low,
			Open:      q.Open,
			Volume:    q.Volume,
			Source:    ProviderHTTP,
			UpdatedAt: updatedAt,
		})
	}
	return quotes, nil
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
