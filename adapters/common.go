package adapters

import (
	"fmt"
	"strings"
)

// ExtractCategory returns the category portion of a stream ID, the text
// before the first hyphen in "Category-ID". A stream ID with no hyphen is
// its own category.
func ExtractCategory(streamID string) string {
	if streamID == "" {
		return ""
	}
	category, _, _ := strings.Cut(streamID, "-")
	return category
}

// ConcurrencyError reports a failed optimistic concurrency check during
// Append, carrying the expected and actual stream versions. It matches
// ErrConcurrencyConflict under errors.Is.
type ConcurrencyError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

// NewConcurrencyError creates a ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{
		StreamID:        streamID,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// Error returns the error message.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("orderflow: concurrency conflict on stream %q: expected version %d, got %d",
		e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

// Is matches ErrConcurrencyConflict.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// StreamNotFoundError reports a stream that does not exist. It matches
// ErrStreamNotFound under errors.Is.
type StreamNotFoundError struct {
	StreamID string
}

// NewStreamNotFoundError creates a StreamNotFoundError.
func NewStreamNotFoundError(streamID string) *StreamNotFoundError {
	return &StreamNotFoundError{StreamID: streamID}
}

// Error returns the error message.
func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("orderflow: stream %q not found", e.StreamID)
}

// Is matches ErrStreamNotFound.
func (e *StreamNotFoundError) Is(target error) bool {
	return target == ErrStreamNotFound
}

// CheckVersion is the optimistic concurrency check shared by all adapters.
// AnyVersion always passes, NoStream requires the stream to be absent,
// StreamExists requires it to be present, and any other non-negative value
// must equal the current stream version exactly.
func CheckVersion(streamID string, expected, current int64, exists bool) error {
	switch expected {
	case AnyVersion:
		return nil
	case NoStream:
		if exists {
			return NewConcurrencyError(streamID, expected, current)
		}
		return nil
	case StreamExists:
		if !exists {
			return NewStreamNotFoundError(streamID)
		}
		return nil
	default:
		if expected < 0 {
			return ErrInvalidVersion
		}
		if current != expected {
			return NewConcurrencyError(streamID, expected, current)
		}
		return nil
	}
}

// DefaultLimit substitutes defaultValue for non-positive limits.
func DefaultLimit(limit, defaultValue int) int {
	if limit <= 0 {
		return defaultValue
	}
	return limit
}
