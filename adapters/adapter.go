// Package adapters defines the storage backend interfaces for the event
// store, along with shared error types and version checking logic.
package adapters

import (
	"context"
	"errors"
	"time"
)

// Version constants for optimistic concurrency control.
const (
	// AnyVersion skips version checking.
	AnyVersion int64 = -1

	// NoStream requires the stream to not exist. Use for creating new streams.
	NoStream int64 = 0

	// StreamExists requires the stream to exist.
	StreamExists int64 = -2
)

// Sentinel errors for adapter implementations.
// Adapters should return these (or errors that match via errors.Is)
// so callers can handle failures uniformly across backends.
var (
	// ErrConcurrencyConflict is returned when an optimistic concurrency check fails.
	ErrConcurrencyConflict = errors.New("orderflow: concurrency conflict")

	// ErrStreamNotFound is returned when a stream does not exist.
	ErrStreamNotFound = errors.New("orderflow: stream not found")

	// ErrEmptyStreamID is returned when an empty stream ID is provided.
	ErrEmptyStreamID = errors.New("orderflow: stream ID is required")

	// ErrNoEvents is returned when attempting to append zero events.
	ErrNoEvents = errors.New("orderflow: no events to append")

	// ErrInvalidVersion is returned when an invalid version is specified.
	ErrInvalidVersion = errors.New("orderflow: invalid version")

	// ErrAdapterClosed is returned when operations are attempted on a closed adapter.
	ErrAdapterClosed = errors.New("orderflow: adapter is closed")
)

// Metadata contains event context carried alongside the payload.
type Metadata struct {
	// CorrelationID links related events across services.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the event or command that caused this event.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies who triggered this event.
	UserID string `json:"userId,omitempty"`

	// Custom holds any additional metadata.
	Custom map[string]string `json:"custom,omitempty"`
}

// StoredEvent represents a persisted event with its storage metadata.
type StoredEvent struct {
	// ID is the unique event identifier.
	ID string

	// StreamID is the stream this event belongs to.
	StreamID string

	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains contextual information.
	Metadata Metadata

	// Version is the position within the stream (1-based).
	Version int64

	// GlobalPosition is the global ordering position across all streams.
	GlobalPosition uint64

	// Timestamp is when the event was stored.
	Timestamp time.Time
}

// StreamInfo contains metadata about an event stream.
type StreamInfo struct {
	StreamID   string
	Category   string
	Version    int64
	EventCount int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EventRecord represents an event to be appended to a stream.
type EventRecord struct {
	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains optional contextual information.
	Metadata Metadata
}

// EventStoreAdapter is the interface that storage backends must implement.
type EventStoreAdapter interface {
	// Append stores events to the specified stream with optimistic concurrency control.
	// expectedVersion specifies the expected current version of the stream:
	//   - AnyVersion (-1): skip the version check
	//   - NoStream (0): the stream must not exist
	//   - StreamExists (-2): the stream must exist
	//   - any positive number: the stream must be at this exact version
	// Returns the stored events with their assigned positions.
	Append(ctx context.Context, streamID string, events []EventRecord, expectedVersion int64) ([]StoredEvent, error)

	// Load retrieves events from a stream starting after the specified version.
	// Use fromVersion=0 to load all events.
	Load(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error)

	// GetStreamInfo returns metadata about a stream.
	// Returns ErrStreamNotFound if the stream does not exist.
	GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error)

	// GetLastPosition returns the global position of the last stored event.
	// Returns 0 if no events exist.
	GetLastPosition(ctx context.Context) (uint64, error)

	// Initialize sets up the required storage schema.
	Initialize(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

// SubscriptionOptions configures subscription behavior.
type SubscriptionOptions struct {
	// BufferSize is the size of the event channel buffer. Default: 100.
	BufferSize int

	// PollInterval is how often polling-based adapters check for new events.
	// Default: 100ms.
	PollInterval time.Duration

	// OnError is called when an error occurs during subscription.
	OnError func(err error)
}

// SubscriptionAdapter provides event streaming capabilities.
// Adapters may optionally implement this interface.
type SubscriptionAdapter interface {
	// LoadFromPosition loads events starting after a global position.
	LoadFromPosition(ctx context.Context, fromPosition uint64, limit int) ([]StoredEvent, error)

	// SubscribeAll subscribes to all events across all streams,
	// starting after the specified global position.
	SubscribeAll(ctx context.Context, fromPosition uint64, opts ...SubscriptionOptions) (<-chan StoredEvent, error)

	// SubscribeCategory subscribes to events from streams in a category,
	// starting after the specified global position.
	SubscribeCategory(ctx context.Context, category string, fromPosition uint64, opts ...SubscriptionOptions) (<-chan StoredEvent, error)
}

// SnapshotAdapter stores aggregate snapshots for faster loading.
type SnapshotAdapter interface {
	// SaveSnapshot stores a snapshot for the given stream.
	SaveSnapshot(ctx context.Context, streamID string, version int64, data []byte) error

	// LoadSnapshot retrieves the latest snapshot for the given stream.
	// Returns nil, nil if no snapshot exists.
	LoadSnapshot(ctx context.Context, streamID string) (*SnapshotRecord, error)

	// DeleteSnapshot removes the snapshot for the given stream.
	DeleteSnapshot(ctx context.Context, streamID string) error
}

// SnapshotRecord represents a stored aggregate snapshot.
type SnapshotRecord struct {
	// StreamID is the stream identifier.
	StreamID string

	// Version is the aggregate version at the time of the snapshot.
	Version int64

	// Data is the serialized snapshot payload.
	Data []byte
}

// HealthChecker provides health check capabilities.
type HealthChecker interface {
	// Ping checks if the adapter can reach its backend.
	Ping(ctx context.Context) error
}
