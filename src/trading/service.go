package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cfdpaper/src/marketdata"
	"cfdpaper/src/model"
	"cfdpaper/src/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QuoteReader is the price oracle.
type QuoteReader interface {
	GetQuote(ctx context.Context, symbol string) (*model.MarketQuote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]model.MarketQuote, error)
}

type Publisher interface {
	Publish(evt marketdata.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(marketdata.Event) {}

// Service executes orders, closes positions and marks them to market.
// Every multi-step mutation runs in one transaction holding the profile row lock.
type Service struct {
	db        *gorm.DB
	cfg       Config
	quotes    QuoteReader
	profiles  *repository.ProfileRepository
	orders    *repository.OrderRepository
	positions *repository.PositionRepository
	trades    *repository.TradeHistoryRepository
	audits    *repository.AuditLogRepository
	pub       Publisher
	log       *logrus.Entry
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

func WithPublisher(pub Publisher) Option {
	return func(s *Service) { s.pub = pub }
}

func WithQuoteReader(quotes QuoteReader) Option {
	return func(s *Service) { s.quotes = quotes }
}

func NewService(db *gorm.DB, cfg Config, opts ...Option) *Service {
	s := &Service{
		db:        db,
		cfg:       cfg,
		quotes:    repository.NewMarketDataRepository().WithDB(db),
		profiles:  repository.NewProfileRepository().WithDB(db),
		orders:    repository.NewOrderRepository().WithDB(db),
		positions: repository.NewPositionRepository().WithDB(db),
		trades:    repository.NewTradeHistoryRepository().WithDB(db),
		audits:    repository.NewAuditLogRepository().WithDB(db),
		pub:       noopPublisher{},
		log:       logrus.WithField("component", "trading"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.QuoteMaxAge <= 0 {
		s.cfg.QuoteMaxAge = 5 * time.Minute
	}
	return s
}

// txRepos binds the repositories to a transaction.
type txRepos struct {
	profiles  *repository.ProfileRepository
	orders    *repository.OrderRepository
	positions *repository.PositionRepository
	trades    *repository.TradeHistoryRepository
	audits    *repository.AuditLogRepository
}

func (s *Service) inTx(ctx context.Context, fn func(r txRepos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txRepos{
			profiles:  s.profiles.WithDB(tx),
			orders:    s.orders.WithDB(tx),
			positions: s.positions.WithDB(tx),
			trades:    s.trades.WithDB(tx),
			audits:    s.audits.WithDB(tx),
		})
	})
}

// freshQuote returns the cached quote or an Unavailable error when it is
// missing or older than the configured age.
func (s *Service) freshQuote(ctx context.Context, symbol string) (*model.MarketQuote, error) {
	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", symbol, err)
	}
	if quote == nil || !quote.Price.IsPositive() {
		return nil, withDetail(ErrQuoteUnavailable, fmt.Sprintf("no market data available for %s", symbol))
	}
	if quote.IsStale(s.now(), s.cfg.QuoteMaxAge) {
		return nil, withDetail(ErrQuoteStale, fmt.Sprintf("market data for %s is older than %s", symbol, s.cfg.QuoteMaxAge))
	}
	return quote, nil
}

// lockProfile is the first statement of every account mutation.
func lockProfile(ctx context.Context, r txRepos, userID string) (*model.Profile, error) {
	profile, err := r.profiles.GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func saveProfile(ctx context.Context, r txRepos, profile *model.Profile) error {
	if err := r.profiles.SaveVersioned(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return ErrConcurrentUpdate
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}
