package orderflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/adapters/memory"
	"github.com/orderflow-io/orderflow/order"
)

func newTestStore(opts ...orderflow.Option) (*orderflow.EventStore, *memory.Adapter) {
	adapter := memory.NewAdapter()
	store := orderflow.New(adapter, opts...)
	order.RegisterEvents(store)
	return store, adapter
}

func createTestOrder(t *testing.T, id string) *order.Order {
	t.Helper()
	o := order.NewOrder(id)
	items := []order.ItemInput{
		{ProductID: "p1", Name: "Widget", Quantity: 2, UnitPrice: order.MustMoney(1500, "USD")},
	}
	addr := order.Address{Street: "1 Main St", City: "Springfield", PostalCode: "62701", Country: "US"}
	payment := order.PaymentInfo{Method: order.PaymentMethodCard, Status: order.PaymentStatusPending}
	require.NoError(t, o.Create("cust-1", items, addr, nil, payment, order.ShippingInfo{}))
	return o
}

func receiveEvent(t *testing.T, ch <-chan orderflow.StoredEvent) orderflow.StoredEvent {
	t.Helper()
	select {
	case se, ok := <-ch:
		require.True(t, ok, "subscription channel closed")
		return se
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return orderflow.StoredEvent{}
	}
}

func TestEventStoreAppendLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip preserves concrete event types", func(t *testing.T) {
		store, _ := newTestStore()
		o := createTestOrder(t, "order-1")

		err := store.Append(ctx, "Order-order-1", o.UncommittedEvents())
		require.NoError(t, err)

		events, err := store.Load(ctx, "Order-order-1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "OrderCreated", events[0].Type)
		assert.Equal(t, int64(1), events[0].Version)

		created, ok := events[0].Data.(order.OrderCreated)
		require.True(t, ok)
		assert.Equal(t, "order-1", created.OrderID)
		assert.Equal(t, order.MustMoney(3000, "USD"), created.Subtotal)
	})

	t.Run("expected version mismatch fails", func(t *testing.T) {
		store, _ := newTestStore()
		o := createTestOrder(t, "order-1")
		require.NoError(t, store.Append(ctx, "Order-order-1", o.UncommittedEvents()))

		err := store.Append(ctx, "Order-order-1", o.UncommittedEvents(), orderflow.ExpectVersion(0))
		assert.ErrorIs(t, err, orderflow.ErrConcurrencyConflict)
	})

	t.Run("append metadata is stored", func(t *testing.T) {
		store, _ := newTestStore()
		o := createTestOrder(t, "order-1")

		meta := orderflow.Metadata{CorrelationID: "corr-1", UserID: "user-1"}
		require.NoError(t, store.Append(ctx, "Order-order-1", o.UncommittedEvents(), orderflow.WithAppendMetadata(meta)))

		stored, err := store.LoadRaw(ctx, "Order-order-1", 0)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "corr-1", stored[0].Metadata.CorrelationID)
		assert.Equal(t, "user-1", stored[0].Metadata.UserID)
	})

	t.Run("input validation", func(t *testing.T) {
		store, _ := newTestStore()
		assert.ErrorIs(t, store.Append(ctx, "", []interface{}{struct{}{}}), orderflow.ErrEmptyStreamID)
		assert.ErrorIs(t, store.Append(ctx, "Order-1", nil), orderflow.ErrNoEvents)

		_, err := store.Load(ctx, "")
		assert.ErrorIs(t, err, orderflow.ErrEmptyStreamID)
	})
}

func TestEventStoreAggregates(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load round trip", func(t *testing.T) {
		store, _ := newTestStore()
		o := createTestOrder(t, "order-1")
		require.NoError(t, o.UpdatePaymentInfo(order.PaymentInfo{
			Method: order.PaymentMethodCard, Status: order.PaymentStatusCaptured, TransactionID: "txn-1",
		}))

		require.NoError(t, store.SaveAggregate(ctx, o))
		assert.Empty(t, o.UncommittedEvents())

		loaded := order.NewOrder("order-1")
		require.NoError(t, store.LoadAggregate(ctx, loaded))

		assert.Equal(t, o.Version(), loaded.Version())
		assert.Equal(t, order.StatusConfirmed, loaded.Status())
		assert.Equal(t, o.Total(), loaded.Total())
		assert.Equal(t, "txn-1", loaded.PaymentInfo().TransactionID)
	})

	t.Run("saving with no uncommitted events is a no-op", func(t *testing.T) {
		store, _ := newTestStore()
		o := order.NewOrder("order-1")
		require.NoError(t, store.SaveAggregate(ctx, o))
	})

	t.Run("nil aggregate", func(t *testing.T) {
		store, _ := newTestStore()
		assert.ErrorIs(t, store.SaveAggregate(ctx, nil), orderflow.ErrNilAggregate)
		assert.ErrorIs(t, store.LoadAggregate(ctx, nil), orderflow.ErrNilAggregate)
	})

	t.Run("concurrent writers conflict", func(t *testing.T) {
		store, _ := newTestStore()
		o := createTestOrder(t, "order-1")
		require.NoError(t, store.SaveAggregate(ctx, o))

		first := order.NewOrder("order-1")
		require.NoError(t, store.LoadAggregate(ctx, first))
		second := order.NewOrder("order-1")
		require.NoError(t, store.LoadAggregate(ctx, second))

		require.NoError(t, first.ChangeStatus(order.StatusConfirmed, "payment", "system"))
		require.NoError(t, store.SaveAggregate(ctx, first))

		require.NoError(t, second.ChangeStatus(order.StatusCancelled, "oops", "system"))
		err := store.SaveAggregate(ctx, second)
		assert.ErrorIs(t, err, orderflow.ErrConcurrencyConflict)
	})

	t.Run("snapshots are written at the interval and used on load", func(t *testing.T) {
		store, adapter := newTestStore(orderflow.WithSnapshotInterval(2))
		o := createTestOrder(t, "order-1")
		require.NoError(t, store.SaveAggregate(ctx, o))

		require.NoError(t, o.ChangeStatus(order.StatusConfirmed, "payment", "system"))
		require.NoError(t, store.SaveAggregate(ctx, o))

		snap, err := adapter.LoadSnapshot(ctx, "Order-order-1")
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, int64(2), snap.Version)

		require.NoError(t, o.AddItem(order.ItemInput{ProductID: "p2", Quantity: 1, UnitPrice: order.MustMoney(2500, "USD")}))
		require.NoError(t, store.SaveAggregate(ctx, o))

		loaded := order.NewOrder("order-1")
		require.NoError(t, store.LoadAggregate(ctx, loaded))
		assert.Equal(t, o.Version(), loaded.Version())
		assert.Equal(t, o.Status(), loaded.Status())
		assert.Equal(t, o.Items(), loaded.Items())
		assert.Equal(t, o.Total(), loaded.Total())
	})
}

func TestEventStoreStreams(t *testing.T) {
	ctx := context.Background()

	t.Run("stream info", func(t *testing.T) {
		store, _ := newTestStore()
		o := createTestOrder(t, "order-1")
		require.NoError(t, store.SaveAggregate(ctx, o))

		info, err := store.GetStreamInfo(ctx, "Order-order-1")
		require.NoError(t, err)
		assert.Equal(t, "Order", info.Category)
		assert.Equal(t, int64(1), info.Version)
		assert.Equal(t, int64(1), info.EventCount)
	})

	t.Run("missing stream", func(t *testing.T) {
		store, _ := newTestStore()
		_, err := store.GetStreamInfo(ctx, "Order-missing")
		assert.ErrorIs(t, err, orderflow.ErrStreamNotFound)
	})

	t.Run("last position advances with appends", func(t *testing.T) {
		store, _ := newTestStore()

		pos, err := store.GetLastPosition(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), pos)

		o := createTestOrder(t, "order-1")
		require.NoError(t, store.SaveAggregate(ctx, o))

		pos, err = store.GetLastPosition(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), pos)
	})
}

func TestEventStoreSubscribeAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, _ := newTestStore()

	// Historical events are replayed as a backlog.
	o1 := createTestOrder(t, "order-1")
	require.NoError(t, store.SaveAggregate(ctx, o1))

	ch, err := store.SubscribeAll(ctx, 0)
	require.NoError(t, err)

	se := receiveEvent(t, ch)
	assert.Equal(t, "OrderCreated", se.Type)
	assert.Equal(t, uint64(1), se.GlobalPosition)

	// Live events follow.
	o2 := createTestOrder(t, "order-2")
	require.NoError(t, store.SaveAggregate(ctx, o2))

	se = receiveEvent(t, ch)
	assert.Equal(t, "Order-order-2", se.StreamID)
	assert.Equal(t, uint64(2), se.GlobalPosition)
}
