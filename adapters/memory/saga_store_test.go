package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-io/orderflow/fulfillment"
	"github.com/orderflow-io/orderflow/order"
)

func newSaga(id, orderID string, state fulfillment.State) *fulfillment.Saga {
	return &fulfillment.Saga{
		ID:          id,
		OrderID:     orderID,
		State:       state,
		TotalAmount: order.MustMoney(3255, "USD"),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestSagaStoreSave(t *testing.T) {
	ctx := context.Background()

	t.Run("create and reload", func(t *testing.T) {
		store := NewSagaStore()

		saga := newSaga("saga-1", "order-1", fulfillment.StateStarted)
		saga.Items = []order.OrderItem{{ItemID: "item-1", ProductID: "p1", Quantity: 2}}
		require.NoError(t, store.Save(ctx, saga))
		assert.Equal(t, int64(1), saga.Version)

		loaded, err := store.Load(ctx, "saga-1")
		require.NoError(t, err)
		assert.Equal(t, "order-1", loaded.OrderID)
		assert.Equal(t, fulfillment.StateStarted, loaded.State)
		assert.Equal(t, int64(1), loaded.Version)
		require.Len(t, loaded.Items, 1)
	})

	t.Run("new saga must start at version zero", func(t *testing.T) {
		store := NewSagaStore()

		saga := newSaga("saga-1", "order-1", fulfillment.StateStarted)
		saga.Version = 3
		assert.ErrorIs(t, store.Save(ctx, saga), fulfillment.ErrSagaConflict)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		store := NewSagaStore()

		saga := newSaga("saga-1", "order-1", fulfillment.StateStarted)
		require.NoError(t, store.Save(ctx, saga))

		first, err := store.Load(ctx, "saga-1")
		require.NoError(t, err)
		second, err := store.Load(ctx, "saga-1")
		require.NoError(t, err)

		first.State = fulfillment.StatePaymentPending
		require.NoError(t, store.Save(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.State = fulfillment.StateFailed
		assert.ErrorIs(t, store.Save(ctx, second), fulfillment.ErrSagaConflict)

		loaded, err := store.Load(ctx, "saga-1")
		require.NoError(t, err)
		assert.Equal(t, fulfillment.StatePaymentPending, loaded.State)
	})

	t.Run("loaded sagas are isolated from the store", func(t *testing.T) {
		store := NewSagaStore()

		saga := newSaga("saga-1", "order-1", fulfillment.StateStarted)
		saga.Compensations = []fulfillment.CompensationAction{fulfillment.ActionReleaseInventory}
		require.NoError(t, store.Save(ctx, saga))

		loaded, err := store.Load(ctx, "saga-1")
		require.NoError(t, err)
		loaded.Compensations[0] = fulfillment.ActionRefundPayment
		loaded.State = fulfillment.StateFailed

		fresh, err := store.Load(ctx, "saga-1")
		require.NoError(t, err)
		assert.Equal(t, fulfillment.StateStarted, fresh.State)
		assert.Equal(t, []fulfillment.CompensationAction{fulfillment.ActionReleaseInventory}, fresh.Compensations)
	})

	t.Run("missing saga", func(t *testing.T) {
		store := NewSagaStore()
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, fulfillment.ErrSagaNotFound)
	})
}

func TestSagaStoreQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("FindLiveByOrderID skips terminal sagas", func(t *testing.T) {
		store := NewSagaStore()

		done := newSaga("saga-done", "order-1", fulfillment.StateCompleted)
		require.NoError(t, store.Save(ctx, done))
		live := newSaga("saga-live", "order-1", fulfillment.StatePaymentPending)
		require.NoError(t, store.Save(ctx, live))

		found, err := store.FindLiveByOrderID(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, "saga-live", found.ID)

		_, err = store.FindLiveByOrderID(ctx, "order-other")
		assert.ErrorIs(t, err, fulfillment.ErrSagaNotFound)
	})

	t.Run("FindByState filters and sorts oldest first", func(t *testing.T) {
		store := NewSagaStore()
		base := time.Now()

		older := newSaga("saga-older", "order-1", fulfillment.StateFailed)
		older.CreatedAt = base.Add(-2 * time.Hour)
		newer := newSaga("saga-newer", "order-2", fulfillment.StateFailed)
		newer.CreatedAt = base.Add(-time.Hour)
		completed := newSaga("saga-done", "order-3", fulfillment.StateCompleted)

		require.NoError(t, store.Save(ctx, newer))
		require.NoError(t, store.Save(ctx, older))
		require.NoError(t, store.Save(ctx, completed))

		failed, err := store.FindByState(ctx, fulfillment.StateFailed)
		require.NoError(t, err)
		require.Len(t, failed, 2)
		assert.Equal(t, "saga-older", failed[0].ID)
		assert.Equal(t, "saga-newer", failed[1].ID)

		all, err := store.FindByState(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Delete removes a saga", func(t *testing.T) {
		store := NewSagaStore()
		require.NoError(t, store.Save(ctx, newSaga("saga-1", "order-1", fulfillment.StateCompleted)))

		require.NoError(t, store.Delete(ctx, "saga-1"))
		_, err := store.Load(ctx, "saga-1")
		assert.ErrorIs(t, err, fulfillment.ErrSagaNotFound)

		assert.ErrorIs(t, store.Delete(ctx, "saga-1"), fulfillment.ErrSagaNotFound)
	})
}
