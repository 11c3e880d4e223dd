// Package memory provides in-memory implementations of the event store
// adapter and the saga store, intended for development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow-io/orderflow/adapters"
)

const (
	defaultBufferSize = 100
)

// Adapter is an in-memory event store. It supports subscriptions and
// snapshots, making it a full-featured stand-in for the PostgreSQL
// adapter in tests and local development.
type Adapter struct {
	mu          sync.RWMutex
	streams     map[string][]adapters.StoredEvent
	global      []adapters.StoredEvent
	snapshots   map[string]*adapters.SnapshotRecord
	subscribers map[int]*subscriber
	nextSubID   int
	position    uint64
	closed      bool
}

type subscriber struct {
	ch       chan adapters.StoredEvent
	category string
	done     <-chan struct{}
}

var (
	_ adapters.EventStoreAdapter   = (*Adapter)(nil)
	_ adapters.SubscriptionAdapter = (*Adapter)(nil)
	_ adapters.SnapshotAdapter     = (*Adapter)(nil)
)

// NewAdapter creates an empty in-memory adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		streams:     make(map[string][]adapters.StoredEvent),
		snapshots:   make(map[string]*adapters.SnapshotRecord),
		subscribers: make(map[int]*subscriber),
	}
}

// Append stores events with an optimistic concurrency check.
func (a *Adapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}
	if len(events) == 0 {
		return nil, adapters.ErrNoEvents
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, adapters.ErrAdapterClosed
	}

	stream, exists := a.streams[streamID]
	currentVersion := int64(len(stream))
	if err := adapters.CheckVersion(streamID, expectedVersion, currentVersion, exists); err != nil {
		a.mu.Unlock()
		return nil, err
	}

	now := time.Now().UTC()
	stored := make([]adapters.StoredEvent, len(events))
	for i, record := range events {
		a.position++
		stored[i] = adapters.StoredEvent{
			ID:             uuid.NewString(),
			StreamID:       streamID,
			Type:           record.Type,
			Data:           record.Data,
			Metadata:       record.Metadata,
			Version:        currentVersion + int64(i) + 1,
			GlobalPosition: a.position,
			Timestamp:      now,
		}
	}

	a.streams[streamID] = append(stream, stored...)
	a.global = append(a.global, stored...)

	subs := make([]*subscriber, 0, len(a.subscribers))
	for _, sub := range a.subscribers {
		subs = append(subs, sub)
	}
	a.mu.Unlock()

	for _, se := range stored {
		category := adapters.ExtractCategory(se.StreamID)
		for _, sub := range subs {
			if sub.category != "" && sub.category != category {
				continue
			}
			select {
			case sub.ch <- se:
			case <-sub.done:
			}
		}
	}

	return stored, nil
}

// Load retrieves events from a stream with Version greater than fromVersion.
func (a *Adapter) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	stream := a.streams[streamID]
	result := make([]adapters.StoredEvent, 0, len(stream))
	for _, se := range stream {
		if se.Version > fromVersion {
			result = append(result, se)
		}
	}
	return result, nil
}

// GetStreamInfo returns metadata about a stream.
func (a *Adapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	stream, exists := a.streams[streamID]
	if !exists || len(stream) == 0 {
		return nil, adapters.NewStreamNotFoundError(streamID)
	}

	return &adapters.StreamInfo{
		StreamID:   streamID,
		Category:   adapters.ExtractCategory(streamID),
		Version:    stream[len(stream)-1].Version,
		EventCount: int64(len(stream)),
		CreatedAt:  stream[0].Timestamp,
		UpdatedAt:  stream[len(stream)-1].Timestamp,
	}, nil
}

// GetLastPosition returns the global position of the last stored event.
func (a *Adapter) GetLastPosition(ctx context.Context) (uint64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return 0, adapters.ErrAdapterClosed
	}
	return a.position, nil
}

// LoadFromPosition loads events with GlobalPosition greater than fromPosition.
func (a *Adapter) LoadFromPosition(ctx context.Context, fromPosition uint64, limit int) ([]adapters.StoredEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	limit = adapters.DefaultLimit(limit, len(a.global))
	result := make([]adapters.StoredEvent, 0, limit)
	for _, se := range a.global {
		if se.GlobalPosition <= fromPosition {
			continue
		}
		result = append(result, se)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// SubscribeAll subscribes to all events after the given global position.
func (a *Adapter) SubscribeAll(ctx context.Context, fromPosition uint64, opts ...adapters.SubscriptionOptions) (<-chan adapters.StoredEvent, error) {
	return a.subscribe(ctx, "", fromPosition, opts...)
}

// SubscribeCategory subscribes to events from streams in a category.
func (a *Adapter) SubscribeCategory(ctx context.Context, category string, fromPosition uint64, opts ...adapters.SubscriptionOptions) (<-chan adapters.StoredEvent, error) {
	return a.subscribe(ctx, category, fromPosition, opts...)
}

func (a *Adapter) subscribe(ctx context.Context, category string, fromPosition uint64, opts ...adapters.SubscriptionOptions) (<-chan adapters.StoredEvent, error) {
	bufferSize := defaultBufferSize
	if len(opts) > 0 && opts[0].BufferSize > 0 {
		bufferSize = opts[0].BufferSize
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, adapters.ErrAdapterClosed
	}

	// Catch up on historical events before registering for live ones.
	backlog := make([]adapters.StoredEvent, 0)
	for _, se := range a.global {
		if se.GlobalPosition <= fromPosition {
			continue
		}
		if category != "" && adapters.ExtractCategory(se.StreamID) != category {
			continue
		}
		backlog = append(backlog, se)
	}

	sub := &subscriber{
		ch:       make(chan adapters.StoredEvent, bufferSize+len(backlog)),
		category: category,
		done:     ctx.Done(),
	}
	for _, se := range backlog {
		sub.ch <- se
	}

	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = sub
	a.mu.Unlock()

	out := make(chan adapters.StoredEvent)
	go func() {
		defer close(out)
		defer func() {
			a.mu.Lock()
			delete(a.subscribers, id)
			a.mu.Unlock()
		}()
		for {
			select {
			case se := <-sub.ch:
				select {
				case out <- se:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// SaveSnapshot stores a snapshot, replacing any older one for the stream.
func (a *Adapter) SaveSnapshot(ctx context.Context, streamID string, version int64, data []byte) error {
	if streamID == "" {
		return adapters.ErrEmptyStreamID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return adapters.ErrAdapterClosed
	}

	a.snapshots[streamID] = &adapters.SnapshotRecord{
		StreamID: streamID,
		Version:  version,
		Data:     append([]byte(nil), data...),
	}
	return nil
}

// LoadSnapshot retrieves the latest snapshot for a stream, or nil.
func (a *Adapter) LoadSnapshot(ctx context.Context, streamID string) (*adapters.SnapshotRecord, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	snap, ok := a.snapshots[streamID]
	if !ok {
		return nil, nil
	}
	return &adapters.SnapshotRecord{
		StreamID: snap.StreamID,
		Version:  snap.Version,
		Data:     append([]byte(nil), snap.Data...),
	}, nil
}

// DeleteSnapshot removes the snapshot for a stream.
func (a *Adapter) DeleteSnapshot(ctx context.Context, streamID string) error {
	if streamID == "" {
		return adapters.ErrEmptyStreamID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return adapters.ErrAdapterClosed
	}

	delete(a.snapshots, streamID)
	return nil
}

// Initialize is a no-op for the in-memory adapter.
func (a *Adapter) Initialize(ctx context.Context) error {
	return nil
}

// Close marks the adapter closed and drops all state.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.streams = nil
	a.global = nil
	a.snapshots = nil
	a.subscribers = nil
	return nil
}
