package marketdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	require.Equal(t, 2, bus.Subscribers())

	bus.Publish(Event{Type: EventQuoteUpdated, Data: "AAPL"})

	require.Equal(t, EventQuoteUpdated, (<-a).Type)
	require.Equal(t, EventQuoteUpdated, (<-b).Type)

	bus.Unsubscribe(a)
	_, open := <-a
	require.False(t, open)
	require.Equal(t, 1, bus.Subscribers())

	// Unsubscribing twice is a no-op.
	bus.Unsubscribe(a)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	for i := 0; i < cap(ch)+10; i++ {
		bus.Publish(Event{Type: EventPositionMarked})
	}
	require.Len(t, ch, cap(ch))
}
