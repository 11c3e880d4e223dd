package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-io/orderflow/adapters"
)

func record(eventType string) adapters.EventRecord {
	return adapters.EventRecord{
		Type: eventType,
		Data: []byte(`{}`),
	}
}

func appendOne(t *testing.T, a *Adapter, streamID, eventType string) {
	t.Helper()
	_, err := a.Append(context.Background(), streamID, []adapters.EventRecord{record(eventType)}, adapters.AnyVersion)
	require.NoError(t, err)
}

func receive(t *testing.T, ch <-chan adapters.StoredEvent) adapters.StoredEvent {
	t.Helper()
	select {
	case se, ok := <-ch:
		require.True(t, ok, "subscription channel closed")
		return se
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return adapters.StoredEvent{}
	}
}

func TestAdapterAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns versions and global positions", func(t *testing.T) {
		a := NewAdapter()

		stored, err := a.Append(ctx, "Order-1", []adapters.EventRecord{record("A"), record("B")}, adapters.AnyVersion)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, int64(2), stored[1].Version)
		assert.Equal(t, uint64(1), stored[0].GlobalPosition)
		assert.Equal(t, uint64(2), stored[1].GlobalPosition)
		assert.NotEmpty(t, stored[0].ID)

		stored, err = a.Append(ctx, "Order-2", []adapters.EventRecord{record("C")}, adapters.AnyVersion)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, uint64(3), stored[0].GlobalPosition)
	})

	t.Run("optimistic concurrency checks", func(t *testing.T) {
		a := NewAdapter()
		appendOne(t, a, "Order-1", "A")

		// Exact version match.
		_, err := a.Append(ctx, "Order-1", []adapters.EventRecord{record("B")}, 1)
		require.NoError(t, err)

		// Stale version.
		_, err = a.Append(ctx, "Order-1", []adapters.EventRecord{record("C")}, 1)
		assert.ErrorIs(t, err, adapters.ErrConcurrencyConflict)

		// NoStream against an existing stream.
		_, err = a.Append(ctx, "Order-1", []adapters.EventRecord{record("C")}, 0)
		assert.ErrorIs(t, err, adapters.ErrConcurrencyConflict)

		// StreamExists against a missing stream.
		_, err = a.Append(ctx, "Order-missing", []adapters.EventRecord{record("C")}, adapters.StreamExists)
		assert.ErrorIs(t, err, adapters.ErrStreamNotFound)
	})

	t.Run("input validation", func(t *testing.T) {
		a := NewAdapter()
		_, err := a.Append(ctx, "", []adapters.EventRecord{record("A")}, adapters.AnyVersion)
		assert.ErrorIs(t, err, adapters.ErrEmptyStreamID)

		_, err = a.Append(ctx, "Order-1", nil, adapters.AnyVersion)
		assert.ErrorIs(t, err, adapters.ErrNoEvents)
	})

	t.Run("closed adapter rejects operations", func(t *testing.T) {
		a := NewAdapter()
		require.NoError(t, a.Close())

		_, err := a.Append(ctx, "Order-1", []adapters.EventRecord{record("A")}, adapters.AnyVersion)
		assert.ErrorIs(t, err, adapters.ErrAdapterClosed)

		_, err = a.Load(ctx, "Order-1", 0)
		assert.ErrorIs(t, err, adapters.ErrAdapterClosed)
	})
}

func TestAdapterLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("fromVersion filters older events", func(t *testing.T) {
		a := NewAdapter()
		appendOne(t, a, "Order-1", "A")
		appendOne(t, a, "Order-1", "B")
		appendOne(t, a, "Order-1", "C")

		events, err := a.Load(ctx, "Order-1", 1)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "B", events[0].Type)
		assert.Equal(t, "C", events[1].Type)
	})

	t.Run("missing stream loads empty", func(t *testing.T) {
		a := NewAdapter()
		events, err := a.Load(ctx, "Order-missing", 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("LoadFromPosition honors the limit", func(t *testing.T) {
		a := NewAdapter()
		appendOne(t, a, "Order-1", "A")
		appendOne(t, a, "Order-2", "B")
		appendOne(t, a, "Order-3", "C")

		events, err := a.LoadFromPosition(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "B", events[0].Type)
	})
}

func TestAdapterSubscriptions(t *testing.T) {
	t.Run("backlog then live events", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a := NewAdapter()
		appendOne(t, a, "Order-1", "A")

		ch, err := a.SubscribeAll(ctx, 0)
		require.NoError(t, err)

		assert.Equal(t, "A", receive(t, ch).Type)

		appendOne(t, a, "Order-2", "B")
		assert.Equal(t, "B", receive(t, ch).Type)
	})

	t.Run("category subscriptions filter by stream prefix", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a := NewAdapter()
		appendOne(t, a, "Order-1", "OrderCreated")
		appendOne(t, a, "Invoice-1", "InvoiceIssued")

		ch, err := a.SubscribeCategory(ctx, "Order", 0)
		require.NoError(t, err)

		assert.Equal(t, "OrderCreated", receive(t, ch).Type)

		appendOne(t, a, "Invoice-2", "InvoiceIssued")
		appendOne(t, a, "Order-2", "OrderCreated")

		se := receive(t, ch)
		assert.Equal(t, "Order-2", se.StreamID)
	})

	t.Run("fromPosition skips delivered events", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a := NewAdapter()
		appendOne(t, a, "Order-1", "A")
		appendOne(t, a, "Order-1", "B")

		ch, err := a.SubscribeAll(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "B", receive(t, ch).Type)
	})

	t.Run("cancellation closes the channel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		a := NewAdapter()
		ch, err := a.SubscribeAll(ctx, 0)
		require.NoError(t, err)

		cancel()
		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed after cancellation")
		}
	})
}

func TestAdapterSnapshots(t *testing.T) {
	ctx := context.Background()

	t.Run("save, load, replace, delete", func(t *testing.T) {
		a := NewAdapter()

		snap, err := a.LoadSnapshot(ctx, "Order-1")
		require.NoError(t, err)
		assert.Nil(t, snap)

		require.NoError(t, a.SaveSnapshot(ctx, "Order-1", 5, []byte(`{"v":5}`)))
		require.NoError(t, a.SaveSnapshot(ctx, "Order-1", 10, []byte(`{"v":10}`)))

		snap, err = a.LoadSnapshot(ctx, "Order-1")
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, int64(10), snap.Version)
		assert.JSONEq(t, `{"v":10}`, string(snap.Data))

		require.NoError(t, a.DeleteSnapshot(ctx, "Order-1"))
		snap, err = a.LoadSnapshot(ctx, "Order-1")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("snapshot data is copied", func(t *testing.T) {
		a := NewAdapter()
		data := []byte(`{"v":1}`)
		require.NoError(t, a.SaveSnapshot(ctx, "Order-1", 1, data))
		data[0] = 'x'

		snap, err := a.LoadSnapshot(ctx, "Order-1")
		require.NoError(t, err)
		assert.Equal(t, byte('{'), snap.Data[0])
	})
}

func TestAdapterStreamInfo(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter()
	appendOne(t, a, "Order-1", "A")
	appendOne(t, a, "Order-1", "B")

	info, err := a.GetStreamInfo(ctx, "Order-1")
	require.NoError(t, err)
	assert.Equal(t, "Order", info.Category)
	assert.Equal(t, int64(2), info.Version)
	assert.Equal(t, int64(2), info.EventCount)

	_, err = a.GetStreamInfo(ctx, "Order-missing")
	assert.ErrorIs(t, err, adapters.ErrStreamNotFound)

	pos, err := a.GetLastPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), pos)
}
