package orderflow

import (
	"fmt"
	"strings"
	"time"
)

// Expected-version sentinels for optimistic concurrency control.
const (
	// AnyVersion appends without a version check.
	AnyVersion int64 = -1

	// NoStream requires that the stream does not exist yet.
	NoStream int64 = 0

	// StreamExists requires that the stream already exists, at any version.
	StreamExists int64 = -2
)

// StreamID identifies an event stream as a category (the aggregate type)
// plus an instance ID, rendered as "Category-ID".
type StreamID struct {
	Category string
	ID       string
}

// NewStreamID builds a StreamID from its parts.
func NewStreamID(category, id string) StreamID {
	return StreamID{Category: category, ID: id}
}

// ParseStreamID splits "Category-ID" on the first hyphen. IDs may contain
// hyphens themselves; the category may not.
func ParseStreamID(s string) (StreamID, error) {
	category, id, found := strings.Cut(s, "-")
	if !found || category == "" || id == "" {
		return StreamID{}, fmt.Errorf("orderflow: invalid stream ID format %q, expected 'Category-ID'", s)
	}
	return StreamID{Category: category, ID: id}, nil
}

// String renders the stream ID as "Category-ID".
func (s StreamID) String() string {
	return s.Category + "-" + s.ID
}

// IsZero reports an empty StreamID.
func (s StreamID) IsZero() bool {
	return s.Category == "" && s.ID == ""
}

// Metadata carries contextual information alongside an event payload.
// The With* builders return modified copies.
type Metadata struct {
	// CorrelationID links every event of one business flow.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID names the command or event that caused this one.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies who triggered the change.
	UserID string `json:"userId,omitempty"`

	// Custom holds arbitrary key-value pairs.
	Custom map[string]string `json:"custom,omitempty"`
}

// WithCorrelationID returns a copy with the correlation ID set.
func (m Metadata) WithCorrelationID(id string) Metadata {
	m.CorrelationID = id
	return m
}

// WithCausationID returns a copy with the causation ID set.
func (m Metadata) WithCausationID(id string) Metadata {
	m.CausationID = id
	return m
}

// WithUserID returns a copy with the user ID set.
func (m Metadata) WithUserID(id string) Metadata {
	m.UserID = id
	return m
}

// WithCustom returns a copy with one custom pair added. The custom map is
// copied so the original Metadata is never mutated.
func (m Metadata) WithCustom(key, value string) Metadata {
	next := make(map[string]string, len(m.Custom)+1)
	for k, v := range m.Custom {
		next[k] = v
	}
	next[key] = value
	m.Custom = next
	return m
}

// IsEmpty reports whether no field is set.
func (m Metadata) IsEmpty() bool {
	return m.CorrelationID == "" && m.CausationID == "" && m.UserID == "" && len(m.Custom) == 0
}

// EventData is an event ready for appending: type name, serialized
// payload, and metadata.
type EventData struct {
	Type     string
	Data     []byte
	Metadata Metadata
}

// Validate checks the EventData is complete.
func (e EventData) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("orderflow: event type is required")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("orderflow: event data is required")
	}
	return nil
}

// StoredEvent is a persisted event as the adapter returns it.
type StoredEvent struct {
	// ID is the globally unique event identifier.
	ID string

	// StreamID names the stream holding this event.
	StreamID string

	// Type is the event type name.
	Type string

	// Data is the serialized payload.
	Data []byte

	// Metadata carries the contextual fields stored with the event.
	Metadata Metadata

	// Version is the 1-based position within the stream.
	Version int64

	// GlobalPosition orders the event across all streams.
	GlobalPosition uint64

	// Timestamp records when the event was stored.
	Timestamp time.Time
}

// StreamInfo summarizes one event stream.
type StreamInfo struct {
	StreamID   string
	Category   string
	Version    int64
	EventCount int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Event is a stored event with its payload deserialized to a Go value,
// the form handlers and subscribers work with.
type Event struct {
	ID             string
	StreamID       string
	Type           string
	Data           interface{}
	Metadata       Metadata
	Version        int64
	GlobalPosition uint64
	Timestamp      time.Time
}

// EventFromStored pairs a StoredEvent's envelope with its decoded payload.
func EventFromStored(stored StoredEvent, data interface{}) Event {
	return Event{
		ID:             stored.ID,
		StreamID:       stored.StreamID,
		Type:           stored.Type,
		Data:           data,
		Metadata:       stored.Metadata,
		Version:        stored.Version,
		GlobalPosition: stored.GlobalPosition,
		Timestamp:      stored.Timestamp,
	}
}
