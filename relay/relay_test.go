package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/adapters/memory"
)

type ItemRestocked struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PriceChanged struct {
	ProductID string `json:"productId"`
	NewPrice  int64  `json:"newPrice"`
}

type recordingHandler struct {
	mu     sync.Mutex
	events []interface{}
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *recordingHandler) at(i int) interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[i]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []orderflow.StoredEvent
	closed bool
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event orderflow.StoredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newRelayStore(t *testing.T) *orderflow.EventStore {
	t.Helper()
	store := orderflow.New(memory.NewAdapter())
	store.RegisterEvents(ItemRestocked{}, PriceChanged{})
	return store
}

func appendEvent(t *testing.T, store *orderflow.EventStore, streamID string, event interface{}) {
	t.Helper()
	err := store.Append(context.Background(), streamID, []interface{}{event})
	require.NoError(t, err)
}

func runRelay(t *testing.T, r *Relay) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("relay did not stop after cancellation")
		}
	})
	return cancel
}

func TestRelayDelivery(t *testing.T) {
	t.Run("handlers receive deserialized events", func(t *testing.T) {
		store := newRelayStore(t)
		appendEvent(t, store, "Inventory-p1", ItemRestocked{ProductID: "p1", Quantity: 5})

		handler := &recordingHandler{}
		r := New(store, WithHandler(handler))
		runRelay(t, r)

		require.Eventually(t, func() bool { return handler.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		restocked, ok := handler.at(0).(ItemRestocked)
		require.True(t, ok)
		assert.Equal(t, "p1", restocked.ProductID)
		assert.Equal(t, 5, restocked.Quantity)

		// Live events flow through the same pump.
		appendEvent(t, store, "Inventory-p2", ItemRestocked{ProductID: "p2", Quantity: 1})
		require.Eventually(t, func() bool { return handler.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("publishers receive the raw stored event", func(t *testing.T) {
		store := newRelayStore(t)
		appendEvent(t, store, "Inventory-p1", ItemRestocked{ProductID: "p1", Quantity: 5})

		pub := &recordingPublisher{}
		r := New(store, WithPublisher(pub))
		runRelay(t, r)

		require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		pub.mu.Lock()
		se := pub.events[0]
		pub.mu.Unlock()
		assert.Equal(t, "Inventory-p1", se.StreamID)
		assert.Equal(t, "ItemRestocked", se.Type)
		assert.Equal(t, uint64(1), se.GlobalPosition)
	})

	t.Run("category option filters streams", func(t *testing.T) {
		store := newRelayStore(t)
		appendEvent(t, store, "Inventory-p1", ItemRestocked{ProductID: "p1", Quantity: 5})
		appendEvent(t, store, "Pricing-p1", PriceChanged{ProductID: "p1", NewPrice: 999})

		handler := &recordingHandler{}
		r := New(store, WithHandler(handler), WithCategory("Pricing"))
		runRelay(t, r)

		require.Eventually(t, func() bool { return handler.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		changed, ok := handler.at(0).(PriceChanged)
		require.True(t, ok)
		assert.Equal(t, int64(999), changed.NewPrice)
	})

	t.Run("FromPosition skips already processed events", func(t *testing.T) {
		store := newRelayStore(t)
		appendEvent(t, store, "Inventory-p1", ItemRestocked{ProductID: "p1", Quantity: 5})
		appendEvent(t, store, "Inventory-p2", ItemRestocked{ProductID: "p2", Quantity: 3})

		handler := &recordingHandler{}
		r := New(store, WithHandler(handler), FromPosition(1))
		runRelay(t, r)

		require.Eventually(t, func() bool { return handler.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		restocked := handler.at(0).(ItemRestocked)
		assert.Equal(t, "p2", restocked.ProductID)
	})

	t.Run("handler errors do not stop the pump", func(t *testing.T) {
		store := newRelayStore(t)
		appendEvent(t, store, "Inventory-p1", ItemRestocked{ProductID: "p1", Quantity: 5})
		appendEvent(t, store, "Inventory-p2", ItemRestocked{ProductID: "p2", Quantity: 3})

		failing := &recordingHandler{err: errors.New("handler down")}
		pub := &recordingPublisher{}
		r := New(store, WithHandler(failing), WithPublisher(pub))
		runRelay(t, r)

		require.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, 2, failing.count())
	})
}

func TestRelayClose(t *testing.T) {
	store := newRelayStore(t)
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	r := New(store, WithPublisher(first), WithPublisher(second))

	require.NoError(t, r.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}
