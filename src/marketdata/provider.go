package marketdata

import (
	"context"
	"fmt"
	"net/http"

	"cfdpaper/src/model"
)

// Provider fetches the latest quotes for a set of symbols.
type Provider interface {
	Name() string
	Quotes(ctx context.Context, symbols []string) ([]model.MarketQuote, error)
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderBinance:
		return NewBinanceProvider(&http.Client{Timeout: cfg.Timeout}, cfg.BinanceEndpoint), nil
	case ProviderHTTP:
		if cfg.FeedURL == "" {
			return nil, fmt.Errorf("QUOTE_FEED_URL is required for the %s provider", ProviderHTTP)
		}
		return NewHTTPFeedProvider(cfg.FeedURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("quote provider %q not supported", cfg.Provider)
	}
}
