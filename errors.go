package orderflow

import (
	"errors"
	"fmt"

	"github.com/orderflow-io/orderflow/adapters"
)

// Sentinel errors, matched with errors.Is. The storage-level sentinels are
// aliases of the adapters package errors so callers never import adapters
// just to classify failures.
var (
	// ErrStreamNotFound reports a stream that does not exist.
	ErrStreamNotFound = adapters.ErrStreamNotFound

	// ErrConcurrencyConflict reports a failed optimistic version check.
	// Reload the aggregate and retry the command.
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict

	// ErrSerializationFailed reports an event that could not be encoded
	// or decoded.
	ErrSerializationFailed = errors.New("orderflow: serialization failed")

	// ErrEventTypeNotRegistered reports an unknown event type name.
	ErrEventTypeNotRegistered = errors.New("orderflow: event type not registered")

	// ErrNilAggregate reports a nil aggregate argument.
	ErrNilAggregate = errors.New("orderflow: nil aggregate")

	// ErrEmptyStreamID reports a missing stream ID.
	ErrEmptyStreamID = adapters.ErrEmptyStreamID

	// ErrNoEvents reports an append with no events.
	ErrNoEvents = adapters.ErrNoEvents

	// ErrInvalidVersion reports an unusable expected version.
	ErrInvalidVersion = adapters.ErrInvalidVersion

	// ErrAdapterClosed reports an operation on a closed adapter.
	ErrAdapterClosed = adapters.ErrAdapterClosed

	// ErrSubscriptionNotSupported reports an adapter without live
	// event feeds.
	ErrSubscriptionNotSupported = errors.New("orderflow: adapter does not support subscriptions")

	// ErrSnapshotNotSupported reports an adapter without snapshot storage.
	ErrSnapshotNotSupported = errors.New("orderflow: adapter does not support snapshots")

	// ErrHandlerNotFound reports a command type with no registered handler.
	ErrHandlerNotFound = errors.New("orderflow: handler not found")

	// ErrValidationFailed reports a command rejected by validation.
	ErrValidationFailed = errors.New("orderflow: validation failed")

	// ErrNilCommand reports a nil command dispatch.
	ErrNilCommand = errors.New("orderflow: nil command")

	// ErrHandlerPanicked reports a panic recovered from a handler.
	ErrHandlerPanicked = errors.New("orderflow: handler panicked")

	// ErrCommandBusClosed reports a dispatch on a closed bus.
	ErrCommandBusClosed = errors.New("orderflow: command bus closed")
)

// ConcurrencyError carries the versions involved in a conflict.
type ConcurrencyError = adapters.ConcurrencyError

// NewConcurrencyError creates a ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return adapters.NewConcurrencyError(streamID, expected, actual)
}

// SerializationError carries the event type and direction of a codec
// failure. It matches ErrSerializationFailed under errors.Is.
type SerializationError struct {
	EventType string
	Operation string // "serialize" or "deserialize"
	Cause     error
}

// NewSerializationError creates a SerializationError.
func NewSerializationError(eventType, operation string, cause error) *SerializationError {
	return &SerializationError{EventType: eventType, Operation: operation, Cause: cause}
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("orderflow: failed to %s event type %q: %v",
		e.Operation, e.EventType, e.Cause)
}

// Is matches ErrSerializationFailed.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}

// Unwrap returns the underlying cause.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// EventTypeNotRegisteredError names the event type missing from the
// registry.
type EventTypeNotRegisteredError struct {
	EventType string
}

// Error returns the error message.
func (e *EventTypeNotRegisteredError) Error() string {
	return fmt.Sprintf("orderflow: event type %q not registered", e.EventType)
}

// Is matches ErrEventTypeNotRegistered.
func (e *EventTypeNotRegisteredError) Is(target error) bool {
	return target == ErrEventTypeNotRegistered
}

// Unwrap returns ErrEventTypeNotRegistered.
func (e *EventTypeNotRegisteredError) Unwrap() error {
	return ErrEventTypeNotRegistered
}

// HandlerNotFoundError names the command type that had no handler.
type HandlerNotFoundError struct {
	CommandType string
}

// NewHandlerNotFoundError creates a HandlerNotFoundError.
func NewHandlerNotFoundError(cmdType string) *HandlerNotFoundError {
	return &HandlerNotFoundError{CommandType: cmdType}
}

// Error returns the error message.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("orderflow: no handler registered for command type %q", e.CommandType)
}

// Is matches ErrHandlerNotFound.
func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// Unwrap returns ErrHandlerNotFound.
func (e *HandlerNotFoundError) Unwrap() error {
	return ErrHandlerNotFound
}

// PanicError carries the recovered value and stack from a handler panic.
type PanicError struct {
	CommandType string
	Value       interface{}
	Stack       string
}

// NewPanicError creates a PanicError.
func NewPanicError(cmdType string, value interface{}, stack string) *PanicError {
	return &PanicError{CommandType: cmdType, Value: value, Stack: stack}
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("orderflow: handler panicked while processing %q: %v", e.CommandType, e.Value)
}

// Is matches ErrHandlerPanicked.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanicked
}

// Unwrap returns ErrHandlerPanicked.
func (e *PanicError) Unwrap() error {
	return ErrHandlerPanicked
}
