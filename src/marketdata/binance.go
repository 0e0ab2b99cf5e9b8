package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cfdpaper/src/model"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// BinanceProvider reads 24h tickers through goex. Symbols are configured as
// BASE_QUOTE (BTC_USDT) and cached as BASEQUOTE (BTCUSDT).
type BinanceProvider struct {
	exchange goex.API
}

func NewBinanceProvider(httpClient *http.Client, endpoint string) *BinanceProvider {
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	apiConfig := &goex.APIConfig{
		HttpClient: httpClient,
		Endpoint:   strings.TrimRight(endpoint, "/"),
	}
	return &BinanceProvider{exchange: binance.NewWithConfig(apiConfig)}
}

func (*BinanceProvider) Name() string { return ProviderBinance }

// Quotes fetches one ticker per symbol. Individual failures are logged and
// skipped; an error is returned only when nothing could be fetched.
func (b *BinanceProvider) Quotes(ctx context.Context, symbols []string) ([]model.MarketQuote, error) {
	quotes := make([]model.MarketQuote, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pair, err := parsePair(symbol)
		if err != nil {
			lastErr = err
			logger.WithField("symbol", symbol).WithError(err).Warn("Skipping malformed symbol")
			continue
		}

		ticker, err := b.exchange.GetTicker(pair)
		if err != nil {
			lastErr = fmt.Errorf("ticker %s: %w", symbol, err)
			logger.WithField("symbol", symbol).WithError(err).Warn("Failed to fetch ticker")
			continue
		}
		if ticker.Last <= 0 {
			lastErr = fmt.Errorf("ticker %s: no last price", symbol)
			continue
		}

		quote := tickerToQuote(pair, ticker, time.Now().UTC())
		quote.Open = b.dayOpen(pair)
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return quotes, nil
}

func parsePair(symbol string) (goex.CurrencyPair, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(symbol)), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return goex.CurrencyPair{}, fmt.Errorf("symbol %q must look like BASE_QUOTE", symbol)
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: parts[0]}, goex.Currency{Symbol: parts[1]}), nil
}

// dayOpen reads the open of the current daily candle. goex tickers carry no
// open price. A failed lookup leaves the open at zero and keeps the quote.
func (b *BinanceProvider) dayOpen(pair goex.CurrencyPair) decimal.Decimal {
	klines, err := b.exchange.GetKlineRecords(pair, goex.KLINE_PERIOD_1DAY, 1)
	if err != nil || len(klines) == 0 {
		logger.WithField("symbol", pair.ToSymbol("")).WithError(err).Debug("No daily candle for open price")
		return decimal.Zero
	}
	return decimal.NewFromFloat(klines[len(klines)-1].Open)
}

// tickerToQuote stamps the quote with the fetch time; the 24h window close
// time reported by the exchange is not a trade time.
func tickerToQuote(pair goex.CurrencyPair, ticker *goex.Ticker, fetchedAt time.Time) model.MarketQuote {
	return model.MarketQuote{
		Symbol:    pair.ToSymbol(""),
		Price:     decimal.NewFromFloat(ticker.Last),
		Bid:       decimal.NewFromFloat(ticker.Buy),
		Ask:       decimal.NewFromFloat(ticker.Sell),
		High:      decimal.NewFromFloat(ticker.High),
		Low:       decimal.NewFromFloat(ticker.Low),
		Volume:    decimal.NewFromFloat(ticker.Vol),
		Source:    ProviderBinance,
		UpdatedAt: fetchedAt,
	}
}
