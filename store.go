package orderflow

import (
	"context"
	"fmt"

	"github.com/orderflow-io/orderflow/adapters"
)

// EventStore is the main entry point for event sourcing operations.
// It provides methods for appending events, loading aggregates, and
// managing snapshots.
type EventStore struct {
	adapter          adapters.EventStoreAdapter
	serializer       Serializer
	logger           Logger
	snapshotInterval int64
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithSerializer sets a custom serializer.
func WithSerializer(s Serializer) Option {
	return func(es *EventStore) {
		es.serializer = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(es *EventStore) {
		es.logger = l
	}
}

// WithSnapshotInterval enables snapshotting: SaveAggregate writes a snapshot
// whenever the aggregate's version crosses a multiple of n events.
// Zero disables snapshotting.
func WithSnapshotInterval(n int64) Option {
	return func(es *EventStore) {
		es.snapshotInterval = n
	}
}

// New creates a new EventStore with the given adapter and options.
func New(adapter adapters.EventStoreAdapter, opts ...Option) *EventStore {
	es := &EventStore{
		adapter:    adapter,
		serializer: NewJSONSerializer(),
		logger:     NopLogger(),
	}

	for _, opt := range opts {
		opt(es)
	}

	return es
}

// Serializer returns the event store's serializer.
func (s *EventStore) Serializer() Serializer {
	return s.serializer
}

// Adapter returns the underlying adapter.
func (s *EventStore) Adapter() adapters.EventStoreAdapter {
	return s.adapter
}

// RegisterEvents registers event types with the serializer so they can be
// deserialized back to their concrete types.
func (s *EventStore) RegisterEvents(events ...interface{}) {
	type registrar interface {
		RegisterAll(examples ...interface{})
	}
	if r, ok := s.serializer.(registrar); ok {
		r.RegisterAll(events...)
	}
}

// AppendOption configures an append operation.
type AppendOption func(*appendConfig)

type appendConfig struct {
	metadata        Metadata
	expectedVersion int64
}

// ExpectVersion sets the expected stream version for optimistic concurrency.
func ExpectVersion(v int64) AppendOption {
	return func(c *appendConfig) {
		c.expectedVersion = v
	}
}

// WithAppendMetadata sets metadata for all events in the append operation.
func WithAppendMetadata(m Metadata) AppendOption {
	return func(c *appendConfig) {
		c.metadata = m
	}
}

// Append stores events to the specified stream.
func (s *EventStore) Append(ctx context.Context, streamID string, events []interface{}, opts ...AppendOption) error {
	if streamID == "" {
		return ErrEmptyStreamID
	}
	if len(events) == 0 {
		return ErrNoEvents
	}

	config := &appendConfig{expectedVersion: AnyVersion}
	for _, opt := range opts {
		opt(config)
	}

	records, err := s.toRecords(events, config.metadata)
	if err != nil {
		return err
	}

	_, err = s.adapter.Append(ctx, streamID, records, config.expectedVersion)
	return err
}

// Load retrieves all events from a stream.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]Event, error) {
	return s.LoadFrom(ctx, streamID, 0)
}

// LoadFrom retrieves events from a stream after the specified version.
func (s *EventStore) LoadFrom(ctx context.Context, streamID string, fromVersion int64) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	stored, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(stored))
	for i, se := range stored {
		event, err := DeserializeEvent(s.serializer, storedEventFromAdapter(se))
		if err != nil {
			return nil, fmt.Errorf("orderflow: failed to deserialize event %d: %w", i, err)
		}
		events[i] = event
	}

	return events, nil
}

// LoadRaw retrieves raw (non-deserialized) events from a stream.
func (s *EventStore) LoadRaw(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	stored, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	result := make([]StoredEvent, len(stored))
	for i, se := range stored {
		result[i] = storedEventFromAdapter(se)
	}
	return result, nil
}

// SaveAggregate persists uncommitted events from an aggregate.
//
// The expected version for the append is the aggregate's version minus the
// number of uncommitted events, i.e. the version at which it was loaded.
// A concurrent writer makes the append fail with ErrConcurrencyConflict;
// the caller must reload and retry.
func (s *EventStore) SaveAggregate(ctx context.Context, agg Aggregate) error {
	if agg == nil {
		return ErrNilAggregate
	}

	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	streamID := BuildStreamID(agg.AggregateType(), agg.AggregateID())

	records, err := s.toRecords(events, Metadata{})
	if err != nil {
		return err
	}

	expectedVersion := agg.Version() - int64(len(events))
	if _, err := s.adapter.Append(ctx, streamID, records, expectedVersion); err != nil {
		return err
	}

	agg.ClearUncommittedEvents()

	s.maybeSnapshot(ctx, streamID, agg)

	return nil
}

// LoadAggregate loads an aggregate's state by replaying its events.
// The aggregate should be a new instance with its ID and type already set.
//
// If the aggregate implements Snapshotter and the adapter supports
// snapshots, the latest snapshot is restored first and only events after
// the snapshot's version are replayed. The result is identical to a full
// replay from the first event.
func (s *EventStore) LoadAggregate(ctx context.Context, agg Aggregate) error {
	if agg == nil {
		return ErrNilAggregate
	}

	streamID := BuildStreamID(agg.AggregateType(), agg.AggregateID())
	fromVersion := int64(0)

	if snapshotter, ok := agg.(Snapshotter); ok {
		if sa, ok := s.adapter.(adapters.SnapshotAdapter); ok {
			record, err := sa.LoadSnapshot(ctx, streamID)
			if err != nil {
				return fmt.Errorf("orderflow: failed to load snapshot: %w", err)
			}
			if record != nil {
				if err := snapshotter.RestoreSnapshot(record.Data, record.Version); err != nil {
					return fmt.Errorf("orderflow: failed to restore snapshot: %w", err)
				}
				fromVersion = record.Version
			}
		}
	}

	stored, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return err
	}

	for i, se := range stored {
		data, err := s.serializer.Deserialize(se.Data, se.Type)
		if err != nil {
			return fmt.Errorf("orderflow: failed to deserialize event %d: %w", i, err)
		}
		if err := agg.ApplyEvent(data); err != nil {
			return fmt.Errorf("orderflow: failed to apply event %d: %w", i, err)
		}
	}

	if setter, ok := agg.(VersionSetter); ok {
		if len(stored) > 0 {
			setter.SetVersion(stored[len(stored)-1].Version)
		} else {
			setter.SetVersion(fromVersion)
		}
	}

	return nil
}

// maybeSnapshot writes a snapshot if the aggregate crossed the snapshot
// interval with this save. Snapshot failures are logged, never fatal:
// the event stream remains the source of truth.
func (s *EventStore) maybeSnapshot(ctx context.Context, streamID string, agg Aggregate) {
	if s.snapshotInterval <= 0 {
		return
	}

	snapshotter, ok := agg.(Snapshotter)
	if !ok {
		return
	}
	sa, ok := s.adapter.(adapters.SnapshotAdapter)
	if !ok {
		return
	}

	version := agg.Version()
	if version == 0 || version%s.snapshotInterval != 0 {
		return
	}

	data, snapVersion, err := snapshotter.Snapshot()
	if err != nil {
		s.logger.Warn("Failed to build snapshot", "streamId", streamID, "error", err)
		return
	}
	if err := sa.SaveSnapshot(ctx, streamID, snapVersion, data); err != nil {
		s.logger.Warn("Failed to save snapshot", "streamId", streamID, "error", err)
	}
}

// GetStreamInfo returns metadata about a stream.
func (s *EventStore) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	info, err := s.adapter.GetStreamInfo(ctx, streamID)
	if err != nil {
		return nil, err
	}

	return &StreamInfo{
		StreamID:   info.StreamID,
		Category:   info.Category,
		Version:    info.Version,
		EventCount: info.EventCount,
		CreatedAt:  info.CreatedAt,
		UpdatedAt:  info.UpdatedAt,
	}, nil
}

// GetLastPosition returns the global position of the last stored event.
func (s *EventStore) GetLastPosition(ctx context.Context) (uint64, error) {
	return s.adapter.GetLastPosition(ctx)
}

// SubscribeAll subscribes to all events from the given global position.
// Returns ErrSubscriptionNotSupported if the adapter cannot stream events.
func (s *EventStore) SubscribeAll(ctx context.Context, fromPosition uint64) (<-chan StoredEvent, error) {
	sub, ok := s.adapter.(adapters.SubscriptionAdapter)
	if !ok {
		return nil, ErrSubscriptionNotSupported
	}

	in, err := sub.SubscribeAll(ctx, fromPosition)
	if err != nil {
		return nil, err
	}

	out := make(chan StoredEvent, cap(in))
	go func() {
		defer close(out)
		for se := range in {
			select {
			case out <- storedEventFromAdapter(se):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Initialize sets up the required storage schema.
func (s *EventStore) Initialize(ctx context.Context) error {
	return s.adapter.Initialize(ctx)
}

// Close releases resources held by the event store.
func (s *EventStore) Close() error {
	return s.adapter.Close()
}

func (s *EventStore) toRecords(events []interface{}, metadata Metadata) ([]adapters.EventRecord, error) {
	records := make([]adapters.EventRecord, len(events))
	for i, event := range events {
		eventData, err := SerializeEvent(s.serializer, event, metadata)
		if err != nil {
			return nil, fmt.Errorf("orderflow: failed to serialize event %d: %w", i, err)
		}
		records[i] = adapters.EventRecord{
			Type:     eventData.Type,
			Data:     eventData.Data,
			Metadata: metadataToAdapter(eventData.Metadata),
		}
	}
	return records, nil
}

func metadataToAdapter(m Metadata) adapters.Metadata {
	return adapters.Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func metadataFromAdapter(m adapters.Metadata) Metadata {
	return Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func storedEventFromAdapter(se adapters.StoredEvent) StoredEvent {
	return StoredEvent{
		ID:             se.ID,
		StreamID:       se.StreamID,
		Type:           se.Type,
		Data:           se.Data,
		Metadata:       metadataFromAdapter(se.Metadata),
		Version:        se.Version,
		GlobalPosition: se.GlobalPosition,
		Timestamp:      se.Timestamp,
	}
}
