package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Job is one iteration of a periodic task.
type Job func(ctx context.Context) error

// RunEvery runs job immediately and then on every tick of period until ctx is
// cancelled. A failing iteration is logged and the loop keeps going.
func RunEvery(ctx context.Context, period time.Duration, name string, job Job) error {
	if period <= 0 {
		return errors.New("loop period must be positive")
	}
	log := logger.WithField("loop", name)

	runOnce(ctx, log, job)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("loop stopped")
			return nil

		case <-ticker.C:
			log.Debug("loop tick")
			runOnce(ctx, log, job)
		}
	}
}

func runOnce(ctx context.Context, log *logger.Entry, job Job) {
	started := time.Now()
	if err := job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Error("loop iteration failed")
		return
	}
	log.WithField("elapsed", time.Since(started).String()).Debug("loop iteration done")
}
