package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cfdpaper/src/auth"
	"cfdpaper/src/database"
	"cfdpaper/src/executors"
	"cfdpaper/src/handler"
	"cfdpaper/src/marketdata"
	"cfdpaper/src/repository"
	"cfdpaper/src/security"
	"cfdpaper/src/trading"
	"cfdpaper/src/validation"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

// Deps carries everything the router needs.
type Deps struct {
	Trading           *trading.Service
	Validation        *validation.Service
	Orders            *repository.OrderRepository
	Positions         *repository.PositionRepository
	Trades            *repository.TradeHistoryRepository
	Profiles          *repository.ProfileRepository
	Exceptions        *repository.ExceptionRepository
	Bus               *marketdata.Bus
	Verifier          *auth.Verifier
	InternalTokenHash string
	AllowedOrigin     string
}

// NewDeps wires the repositories and services against the initialized databases.
func NewDeps(cfg *Config) *Deps {
	bus := marketdata.NewBus()
	tradingCfg := trading.GetConfig()
	authCfg := auth.GetConfig()

	read := database.Read()
	profiles := repository.NewProfileRepository()
	positions := repository.NewPositionRepository()
	quotes := repository.NewMarketDataRepository()

	return &Deps{
		Trading:           trading.NewService(database.MainDB, tradingCfg, trading.WithPublisher(bus)),
		Validation:        validation.NewService(profiles, positions, quotes, tradingCfg.QuoteMaxAge),
		Orders:            repository.NewOrderRepository().WithDB(read),
		Positions:         repository.NewPositionRepository().WithDB(read),
		Trades:            repository.NewTradeHistoryRepository().WithDB(read),
		Profiles:          repository.NewProfileRepository().WithDB(read),
		Exceptions:        repository.NewExceptionRepository(),
		Bus:               bus,
		Verifier:          auth.NewVerifier(authCfg.JWTSecret, authCfg.JWTIssuer),
		InternalTokenHash: security.GetConfig().InternalTokenHash,
		AllowedOrigin:     cfg.AllowedOrigin,
	}
}

// NewRouter builds the HTTP surface.
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	apiErrors := handler.NewErrorWriter(d.Exceptions, "api")

	r.Route("/api", func(r chi.Router) {
		// The stream authenticates itself since browsers pass the token as a query parameter.
		r.Get("/stream", handler.NewStreamHandler(d.Bus, d.Verifier, d.AllowedOrigin).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(d.Verifier))

			r.Post("/orders", handler.SubmitOrderHandler(d.Validation, d.Trading, apiErrors))
			r.Post("/orders/validate", handler.ValidateOrderHandler(d.Validation, apiErrors))
			r.Get("/orders", handler.SearchOrdersHandler(d.Orders, apiErrors))
			r.Post("/positions/close", handler.ClosePositionHandler(d.Trading, apiErrors))
			r.Get("/positions", handler.ListPositionsHandler(d.Positions, apiErrors))
			r.Get("/trades", handler.ListTradesHandler(d.Trades, apiErrors))
			r.Get("/profile", handler.GetProfileHandler(d.Profiles, apiErrors))
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(auth.RequireInternalToken(d.InternalTokenHash))
		r.Post("/positions/refresh", handler.RefreshPositionsHandler(d.Trading, handler.NewErrorWriter(d.Exceptions, "cron")))
	})

	return r
}

// startBackgroundJobs runs the quote poller and the mark-to-market loop until ctx is done.
func startBackgroundJobs(ctx context.Context, d *Deps) {
	mdCfg := marketdata.GetConfig()
	provider, err := marketdata.NewProvider(mdCfg)
	if err != nil {
		logger.WithError(err).Error("quote provider not configured, background jobs disabled")
		return
	}
	poller := marketdata.NewPoller(provider, repository.NewMarketDataRepository(), d.Bus, mdCfg.Symbols)
	execCfg := executors.GetConfig()

	go func() {
		if err := poller.Run(ctx, mdCfg.PollPeriod); err != nil {
			logger.WithError(err).Error("quote poller stopped")
		}
	}()
	go func() {
		err := executors.RunEvery(ctx, execCfg.MarkToMarketPeriod, "mark_to_market", func(ctx context.Context) error {
			_, err := d.Trading.MarkToMarket(ctx, trading.Scope{})
			return err
		})
		if err != nil {
			logger.WithError(err).Error("mark-to-market loop stopped")
		}
	}()
}

func StartServer(cfg *Config) {
	deps := NewDeps(cfg)

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if cfg.EnableBackgroundJobs {
		startBackgroundJobs(jobsCtx, deps)
	}

	// Graceful server
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	stopJobs()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
