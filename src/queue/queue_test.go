package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cfdpaper/src/trading"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type scriptedSubmitter struct {
	mu       sync.Mutex
	errs     []error
	requests []trading.OrderRequest
}

func (s *scriptedSubmitter) SubmitOrder(_ context.Context, req trading.OrderRequest) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Receipt{OrderID: uint(len(s.requests)), Status: "filled"}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchPause = 0
	return cfg
}

func order(symbol string) trading.OrderRequest {
	return trading.OrderRequest{Symbol: symbol, OrderType: "market", Side: "buy", Quantity: decimal.NewFromInt(1)}
}

var errUnavailable = &trading.Error{Kind: trading.KindUnavailable, Message: "quote stale"}

func TestBackoffDoublesAndCaps(t *testing.T) {
	q := New(&scriptedSubmitter{}, DefaultConfig())

	expected := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute, time.Minute}
	for i, want := range expected {
		assert.Equal(t, want, q.Backoff(i+1), "attempt %d", i+1)
	}
}

func TestDrainSubmitsInFIFOOrder(t *testing.T) {
	sub := &scriptedSubmitter{}
	var succeeded []string
	q := New(sub, testConfig(), OnSuccess(func(e Entry, _ *Receipt) { succeeded = append(succeeded, e.Request.Symbol) }))

	for _, s := range []string{"AAPL", "MSFT", "TSLA", "AMZN", "NFLX", "META", "NVDA"} {
		q.Enqueue(order(s))
	}

	require.Equal(t, 7, q.Drain(context.Background()))
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA", "AMZN", "NFLX", "META", "NVDA"}, succeeded)
	assert.Empty(t, q.Pending())
	for _, req := range sub.requests {
		assert.NotEmpty(t, req.ClientOrderID)
	}
}

func TestRetryKeepsClientOrderIDAndWaitsForBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)}
	sub := &scriptedSubmitter{errs: []error{errUnavailable, nil}}
	q := New(sub, testConfig(), WithClock(clock.Now))

	q.Enqueue(order("AAPL"))
	require.Equal(t, 1, q.Drain(context.Background()))

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, clock.Now().Add(5*time.Second), pending[0].NextAttemptAt)
	assert.Contains(t, pending[0].LastError, "quote stale")

	// Not due yet.
	clock.Advance(4 * time.Second)
	require.Equal(t, 0, q.Drain(context.Background()))

	clock.Advance(time.Second)
	require.Equal(t, 1, q.Drain(context.Background()))
	assert.Empty(t, q.Pending())

	require.Len(t, sub.requests, 2)
	assert.Equal(t, sub.requests[0].ClientOrderID, sub.requests[1].ClientOrderID)
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	sub := &scriptedSubmitter{errs: []error{errUnavailable, errUnavailable, errUnavailable}}

	var failed []Entry
	q := New(sub, cfg, WithClock(clock.Now), OnFailure(func(e Entry, _ error) { failed = append(failed, e) }))
	q.Enqueue(order("AAPL"))

	for i := 0; i < 3; i++ {
		q.Drain(context.Background())
		clock.Advance(time.Minute)
	}

	assert.Empty(t, q.Pending())
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].Attempts)
	assert.Equal(t, EntryDead, dead[0].Status)
	require.Len(t, failed, 1)
	assert.Equal(t, dead[0].ID, failed[0].ID)
	assert.Equal(t, EntryDead, failed[0].Status)

	// Nothing left to retry.
	clock.Advance(time.Hour)
	assert.Equal(t, 0, q.Drain(context.Background()))
}

func TestBusinessRejectionIsNotRetried(t *testing.T) {
	sub := &scriptedSubmitter{errs: []error{trading.ErrInsufficientMargin}}
	q := New(sub, testConfig())
	q.Enqueue(order("AAPL"))

	q.Drain(context.Background())

	assert.Empty(t, q.Pending())
	require.Len(t, q.DeadLetters(), 1)
	assert.Equal(t, EntryDead, q.DeadLetters()[0].Status)
	assert.Len(t, sub.requests, 1)
}

type classified struct{ retry bool }

func (c classified) Error() string   { return "classified" }
func (c classified) Retryable() bool { return c.retry }

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.True(t, IsRetryable(trading.ErrConcurrentUpdate))
	assert.True(t, IsRetryable(errUnavailable))
	assert.False(t, IsRetryable(trading.ErrDuplicatePosition))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(classified{retry: false}))
	assert.True(t, IsRetryable(classified{retry: true}))
}

type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) SubmitOrder(context.Context, trading.OrderRequest) (*Receipt, error) {
	close(b.started)
	<-b.release
	return &Receipt{Status: "filled"}, nil
}

func TestCancelOnlyRemovesPendingEntries(t *testing.T) {
	sub := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.BatchPause = time.Hour
	q := New(sub, cfg)

	inFlight := q.Enqueue(order("AAPL"))
	queued := q.Enqueue(order("MSFT"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int)
	go func() { done <- q.Drain(ctx) }()

	<-sub.started
	assert.False(t, q.Cancel(inFlight), "in-flight entry cannot be cancelled")
	close(sub.release)

	// The second batch waits out the pause; cancelling the context returns it to pending.
	require.Eventually(t, func() bool { return len(q.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Equal(t, 1, <-done)

	assert.True(t, q.Cancel(queued))
	assert.False(t, q.Cancel(queued))
	assert.Empty(t, q.Pending())
}

func TestRunDrainsOnTick(t *testing.T) {
	sub := &scriptedSubmitter{}
	cfg := testConfig()
	cfg.Tick = 10 * time.Millisecond
	q := New(sub, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	q.Enqueue(order("AAPL"))
	require.Eventually(t, func() bool { return len(q.Pending()) == 0 }, time.Second, 5*time.Millisecond)
}
