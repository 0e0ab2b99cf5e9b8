package marketdata

import (
	"context"
	"fmt"
	"time"

	"cfdpaper/src/executors"
	"cfdpaper/src/model"

	logger "github.com/sirupsen/logrus"
)

type QuoteStore interface {
	Upsert(ctx context.Context, quotes []model.MarketQuote) error
}

type Publisher interface {
	Publish(evt Event)
}

// Poller copies provider quotes into the market data cache.
type Poller struct {
	provider Provider
	store    QuoteStore
	pub      Publisher
	symbols  []string
	log      *logger.Entry
}

func NewPoller(provider Provider, store QuoteStore, pub Publisher, symbols []string) *Poller {
	return &Poller{
		provider: provider,
		store:    store,
		pub:      pub,
		symbols:  symbols,
		log:      logger.WithFields(map[string]interface{}{"component": "quote_poller", "provider": provider.Name()}),
	}
}

// Refresh runs one poll and returns the number of cached quotes.
func (p *Poller) Refresh(ctx context.Context) (int, error) {
	if len(p.symbols) == 0 {
		return 0, nil
	}

	quotes, err := p.provider.Quotes(ctx, p.symbols)
	if err != nil {
		return 0, fmt.Errorf("fetch quotes: %w", err)
	}
	if len(quotes) == 0 {
		p.log.Warn("Provider returned no quotes")
		return 0, nil
	}

	if err := p.store.Upsert(ctx, quotes); err != nil {
		return 0, fmt.Errorf("cache quotes: %w", err)
	}

	if p.pub != nil {
		for _, q := range quotes {
			p.pub.Publish(Event{Type: EventQuoteUpdated, Data: q})
		}
	}

	p.log.WithField("count", len(quotes)).Debug("Quotes refreshed")
	return len(quotes), nil
}

// Run refreshes on every period until ctx is done.
func (p *Poller) Run(ctx context.Context, period time.Duration) error {
	return executors.RunEvery(ctx, period, "quote_poller", func(ctx context.Context) error {
		_, err := p.Refresh(ctx)
		return err
	})
}
