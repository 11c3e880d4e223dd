package fulfillment

import (
	"context"
	"errors"
	"fmt"
)

// Saga store sentinel errors.
var (
	// ErrSagaNotFound indicates the requested saga does not exist.
	ErrSagaNotFound = errors.New("fulfillment: saga not found")

	// ErrSagaAlreadyExists indicates a live saga already exists for the order.
	ErrSagaAlreadyExists = errors.New("fulfillment: saga already exists")

	// ErrSagaConflict indicates a concurrent update to the same saga row.
	ErrSagaConflict = errors.New("fulfillment: saga version conflict")

	// ErrRetryLimitExceeded indicates a manual retry beyond the configured limit.
	ErrRetryLimitExceeded = errors.New("fulfillment: retry limit exceeded")

	// ErrRetryNotAllowed indicates a retry of a saga that is not FAILED.
	ErrRetryNotAllowed = errors.New("fulfillment: saga is not in a retryable state")
)

// SagaNotFoundError reports a missing saga by ID or order ID.
type SagaNotFoundError struct {
	SagaID  string
	OrderID string
}

// Error returns the error message.
func (e *SagaNotFoundError) Error() string {
	if e.SagaID != "" {
		return fmt.Sprintf("fulfillment: saga %q not found", e.SagaID)
	}
	return fmt.Sprintf("fulfillment: no saga found for order %q", e.OrderID)
}

// Is reports whether this error matches ErrSagaNotFound.
func (e *SagaNotFoundError) Is(target error) bool {
	return target == ErrSagaNotFound
}

// Store persists saga instances. Implementations must perform Save as a
// compare-and-swap on Version: a mismatch returns ErrSagaConflict and the
// caller reloads. On success the implementation increments Version.
type Store interface {
	// Save creates or updates a saga with an optimistic version check.
	Save(ctx context.Context, saga *Saga) error

	// Load retrieves a saga by ID.
	// Returns ErrSagaNotFound if it does not exist.
	Load(ctx context.Context, sagaID string) (*Saga, error)

	// FindLiveByOrderID finds the single non-terminal saga for an order.
	// Returns ErrSagaNotFound if no live saga exists.
	FindLiveByOrderID(ctx context.Context, orderID string) (*Saga, error)

	// FindByState finds sagas in any of the given states.
	// With no states given, all sagas are returned.
	FindByState(ctx context.Context, states ...State) ([]*Saga, error)

	// Delete removes a saga.
	// Returns ErrSagaNotFound if it does not exist.
	Delete(ctx context.Context, sagaID string) error

	// Close releases any resources held by the store.
	Close() error
}
