package quotefeed

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cfdpaper/src/database"
	"cfdpaper/src/marketdata"
	"cfdpaper/src/repository"

	"github.com/sirupsen/logrus"
)

// QuoteFeed fills the quote cache from the configured provider.
type QuoteFeed struct {
	Log  *logrus.Entry
	Once bool
}

func (q *QuoteFeed) Start() error {
	config := marketdata.GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		q.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	provider, err := marketdata.NewProvider(config)
	if err != nil {
		return err
	}
	q.Log.WithFields(map[string]interface{}{
		"provider": provider.Name(),
		"symbols":  config.Symbols,
	}).Info("Starting quote feed")

	poller := marketdata.NewPoller(provider, repository.NewMarketDataRepository(), nil, config.Symbols)
	if q.Once {
		count, err := poller.Refresh(ctx)
		if err != nil {
			return err
		}
		q.Log.WithField("count", count).Info("Quotes refreshed")
		return nil
	}
	return poller.Run(ctx, config.PollPeriod)
}
