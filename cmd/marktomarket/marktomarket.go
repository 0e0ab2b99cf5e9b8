package marktomarket

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cfdpaper/src/database"
	"cfdpaper/src/executors"
	"cfdpaper/src/trading"

	"github.com/sirupsen/logrus"
)

// MarkToMarket re-prices open positions on a schedule, or once when Once is set.
type MarkToMarket struct {
	Log  *logrus.Entry
	Once bool
}

func (m *MarkToMarket) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		m.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	service := trading.NewService(database.MainDB, trading.GetConfig(), trading.WithLogger(m.Log))
	scope := trading.Scope{UserID: config.UserID, Symbols: config.Symbols}

	run := func(ctx context.Context) error {
		result, err := service.MarkToMarket(ctx, scope)
		if err != nil {
			return err
		}
		m.Log.WithFields(map[string]interface{}{
			"updated":   result.UpdatedCount,
			"skipped":   result.SkippedCount,
			"symbols":   result.SymbolsUpdated,
			"suspended": result.SuspendedUsers,
		}).Info("Mark-to-market finished")
		return nil
	}

	if m.Once {
		return run(ctx)
	}
	return executors.RunEvery(ctx, executors.GetConfig().MarkToMarketPeriod, "mark_to_market", run)
}
