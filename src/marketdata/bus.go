package marketdata

import (
	"sync"
)

const (
	EventQuoteUpdated   = "quote.updated"
	EventPositionOpened = "position.opened"
	EventPositionClosed = "position.closed"
	EventPositionMarked = "position.marked"
	EventAccountSuspend = "account.suspended"
)

// Event is fanned out to stream subscribers. UserID is empty for public events.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"-"`
	Data   any    `json:"data"`
}

// Bus is an in-process fan-out. Slow subscribers drop events.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 100)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
