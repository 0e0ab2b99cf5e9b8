package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"cfdpaper/src/executors"
	"cfdpaper/src/trading"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	EntryPending    = "pending"
	EntrySubmitting = "submitting"
	EntryDead       = "dead"
)

// Receipt is what the backend reports for an accepted order.
type Receipt struct {
	OrderID        uint            `json:"order_id"`
	PositionID     uint            `json:"position_id"`
	Status         string          `json:"status"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	Replayed       bool            `json:"replayed"`
}

// Submitter sends one order to the backend.
type Submitter interface {
	SubmitOrder(ctx context.Context, req trading.OrderRequest) (*Receipt, error)
}

// Entry is a buffered submission. Request.ClientOrderID stays the same
// across retries so the backend can deduplicate.
type Entry struct {
	ID            string               `json:"id"`
	Request       trading.OrderRequest `json:"request"`
	Status        string               `json:"status"`
	Attempts      int                  `json:"attempts"`
	EnqueuedAt    time.Time            `json:"enqueued_at"`
	NextAttemptAt time.Time            `json:"next_attempt_at"`
	LastError     string               `json:"last_error,omitempty"`
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// OnSuccess registers a callback run after an accepted submission.
func OnSuccess(fn func(Entry, *Receipt)) Option {
	return func(q *Queue) { q.onSuccess = fn }
}

// OnFailure registers a callback run when an entry is dead-lettered.
func OnFailure(fn func(Entry, error)) Option {
	return func(q *Queue) { q.onFailure = fn }
}

// WithRetryPolicy overrides the transient error classifier.
func WithRetryPolicy(fn func(error) bool) Option {
	return func(q *Queue) { q.retryable = fn }
}

// Queue is a process-local FIFO of order submissions with bounded retry.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
	dead    []Entry

	cfg       Config
	submitter Submitter
	now       func() time.Time
	onSuccess func(Entry, *Receipt)
	onFailure func(Entry, error)
	retryable func(error) bool
	log       *logger.Entry
}

func New(submitter Submitter, cfg Config, opts ...Option) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	q := &Queue{
		cfg:       cfg,
		submitter: submitter,
		now:       time.Now,
		onSuccess: func(Entry, *Receipt) {},
		onFailure: func(Entry, error) {},
		retryable: IsRetryable,
		log:       logger.WithField("component", "order_queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue buffers req and returns the entry id. A client order id is
// generated when the request has none.
func (q *Queue) Enqueue(req trading.OrderRequest) string {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	now := q.now()
	entry := &Entry{
		ID:            uuid.NewString(),
		Request:       req,
		Status:        EntryPending,
		EnqueuedAt:    now,
		NextAttemptAt: now,
	}

	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()

	q.log.WithFields(map[string]interface{}{
		"entry_id":        entry.ID,
		"client_order_id": req.ClientOrderID,
		"symbol":          req.Symbol,
	}).Debug("Order queued")
	return entry.ID
}

// Cancel drops a buffered entry. Entries already being submitted cannot be
// cancelled.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.ID != id {
			continue
		}
		if e.Status != EntryPending {
			return false
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		return true
	}
	return false
}

// Pending returns a snapshot of buffered and in-flight entries in FIFO order.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	return out
}

// DeadLetters returns entries that failed permanently.
func (q *Queue) DeadLetters() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.dead...)
}

// Backoff is the delay before retry number attempt (1-based):
// BaseBackoff * 2^(attempt-1), capped at MaxBackoff.
func (q *Queue) Backoff(attempt int) time.Duration {
	delay := q.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxBackoff {
			return q.cfg.MaxBackoff
		}
	}
	if q.cfg.MaxBackoff > 0 && delay > q.cfg.MaxBackoff {
		return q.cfg.MaxBackoff
	}
	return delay
}

// Drain submits every due entry, BatchSize at a time with BatchPause between
// batches. It returns the number of submissions attempted.
func (q *Queue) Drain(ctx context.Context) int {
	due := q.claimDue()
	attempted := 0

	for start := 0; start < len(due); start += q.cfg.BatchSize {
		if start > 0 && q.cfg.BatchPause > 0 {
			select {
			case <-ctx.Done():
				q.release(due[start:])
				return attempted
			case <-time.After(q.cfg.BatchPause):
			}
		}

		end := start + q.cfg.BatchSize
		if end > len(due) {
			end = len(due)
		}
		for _, e := range due[start:end] {
			if ctx.Err() != nil {
				q.release(due[start:])
				return attempted
			}
			q.submit(ctx, e)
			attempted++
		}
	}
	return attempted
}

// Run drains on every Tick until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	return executors.RunEvery(ctx, q.cfg.Tick, "order_queue", func(ctx context.Context) error {
		q.Drain(ctx)
		return nil
	})
}

func (q *Queue) claimDue() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []*Entry
	for _, e := range q.entries {
		if e.Status == EntryPending && !e.NextAttemptAt.After(now) {
			e.Status = EntrySubmitting
			due = append(due, e)
		}
	}
	return due
}

func (q *Queue) release(entries []*Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entries {
		if e.Status == EntrySubmitting {
			e.Status = EntryPending
		}
	}
}

func (q *Queue) submit(ctx context.Context, e *Entry) {
	q.mu.Lock()
	e.Attempts++
	req := e.Request
	q.mu.Unlock()

	receipt, err := q.submitter.SubmitOrder(ctx, req)

	q.mu.Lock()
	log := q.log.WithFields(map[string]interface{}{
		"entry_id":        e.ID,
		"client_order_id": req.ClientOrderID,
		"attempt":         e.Attempts,
	})

	if err == nil {
		q.remove(e)
		snapshot := *e
		q.mu.Unlock()
		log.Info("Order submitted")
		q.onSuccess(snapshot, receipt)
		return
	}

	e.LastError = err.Error()
	if !q.retryable(err) || e.Attempts >= q.cfg.MaxAttempts {
		q.remove(e)
		e.Status = EntryDead
		q.dead = append(q.dead, *e)
		snapshot := *e
		q.mu.Unlock()
		log.WithError(err).Warn("Order moved to dead letter")
		q.onFailure(snapshot, err)
		return
	}

	delay := q.Backoff(e.Attempts)
	e.Status = EntryPending
	e.NextAttemptAt = q.now().Add(delay)
	q.mu.Unlock()
	log.WithError(err).WithField("retry_in", delay.String()).Warn("Order submission failed, will retry")
}

// remove must be called with q.mu held.
func (q *Queue) remove(target *Entry) {
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// IsRetryable defers to errors that classify themselves and falls back to the
// trading error kinds. Cancelled contexts are never retried.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return trading.IsRetryable(err)
}
