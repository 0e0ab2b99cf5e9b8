package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cfdpaper/src/client"
	"cfdpaper/src/queue"
	"cfdpaper/src/trading"

	"github.com/sirupsen/logrus"
)

// Submitter pushes a file of orders through the client queue and reports
// which were accepted and which ended in the dead letter.
type Submitter struct {
	Log  *logrus.Entry
	File string
}

// Report summarizes a finished run.
type Report struct {
	Accepted    int
	DeadLetters []queue.Entry
}

func (s *Submitter) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	orders, err := LoadOrders(s.File)
	if err != nil {
		return err
	}

	api := client.New(config.APIBaseURL, config.APIToken, config.Timeout)
	report, err := Submit(ctx, api, queue.GetConfig(), orders, s.Log)
	if err != nil {
		return err
	}

	s.Log.WithFields(map[string]interface{}{
		"accepted":     report.Accepted,
		"dead_letters": len(report.DeadLetters),
	}).Info("Submission finished")
	if len(report.DeadLetters) > 0 {
		return fmt.Errorf("%d orders were not accepted", len(report.DeadLetters))
	}
	return nil
}

// LoadOrders reads a JSON array of order requests.
func LoadOrders(path string) ([]trading.OrderRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read orders file: %w", err)
	}
	var orders []trading.OrderRequest
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode orders file: %w", err)
	}
	return orders, nil
}

// Submit enqueues orders and drains the queue until nothing is pending.
func Submit(
	ctx context.Context,
	submitter queue.Submitter,
	cfg queue.Config,
	orders []trading.OrderRequest,
	log *logrus.Entry,
) (*Report, error) {
	report := &Report{}
	q := queue.New(submitter, cfg,
		queue.OnSuccess(func(e queue.Entry, r *queue.Receipt) {
			report.Accepted++
			log.WithFields(map[string]interface{}{
				"client_order_id": e.Request.ClientOrderID,
				"order_id":        r.OrderID,
				"position_id":     r.PositionID,
				"replayed":        r.Replayed,
			}).Info("Order accepted")
		}),
		queue.OnFailure(func(e queue.Entry, err error) {
			log.WithError(err).WithFields(map[string]interface{}{
				"client_order_id": e.Request.ClientOrderID,
				"attempts":        e.Attempts,
			}).Warn("Order dead-lettered")
		}),
	)

	for _, order := range orders {
		q.Enqueue(order)
	}

	for len(q.Pending()) > 0 {
		q.Drain(ctx)
		if len(q.Pending()) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Tick):
		}
	}

	report.DeadLetters = q.DeadLetters()
	return report, nil
}
