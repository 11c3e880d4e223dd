package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/order"
)

// Defaults for manager configuration.
const (
	DefaultMaxRetries   = 3
	DefaultStaleTimeout = 30 * time.Minute
)

// nonTerminalStates lists every state a live saga can be in.
var nonTerminalStates = []State{
	StateStarted,
	StateInventoryReserved,
	StatePaymentPending,
	StatePaymentProcessed,
	StateFulfillmentStarted,
	StateCompensating,
}

// Manager routes inbound order events to the matching saga instance and
// provides the operational surface: startup recovery, manual retry,
// statistics, listing, and cleanup.
type Manager struct {
	orch         *Orchestrator
	store        Store
	logger       orderflow.Logger
	maxRetries   int
	staleTimeout time.Duration
	now          func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxRetries sets the manual retry limit per saga.
func WithMaxRetries(n int) ManagerOption {
	return func(m *Manager) {
		m.maxRetries = n
	}
}

// WithStaleTimeout sets how old a live saga must be before the startup
// recovery sweep marks it failed.
func WithStaleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.staleTimeout = d
	}
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(l orderflow.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager over the given orchestrator.
func NewManager(orch *Orchestrator, opts ...ManagerOption) *Manager {
	m := &Manager{
		orch:         orch,
		store:        orch.store,
		logger:       orch.logger,
		maxRetries:   DefaultMaxRetries,
		staleTimeout: DefaultStaleTimeout,
		now:          orch.now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleEvent routes a deserialized order event to the saga instance for
// its order. Event types the saga does not consume are ignored.
func (m *Manager) HandleEvent(ctx context.Context, event interface{}) error {
	switch e := event.(type) {
	case order.OrderCreated:
		return m.orch.handleOrderCreated(ctx, e)

	case order.OrderPaymentUpdated:
		saga, ok, err := m.findLive(ctx, e.OrderID)
		if err != nil || !ok {
			return err
		}
		return m.orch.handlePaymentUpdated(ctx, saga, e)

	case order.OrderShippingUpdated:
		saga, ok, err := m.findLive(ctx, e.OrderID)
		if err != nil || !ok {
			return err
		}
		return m.orch.handleShippingUpdated(ctx, saga, e)

	case order.OrderCancelled:
		saga, ok, err := m.findLive(ctx, e.OrderID)
		if err != nil || !ok {
			return err
		}
		return m.orch.handleOrderCancelled(ctx, saga, e)

	default:
		return nil
	}
}

// findLive looks up the live saga for an order. A missing saga is not an
// error: the event may be a duplicate delivered after the saga finished.
func (m *Manager) findLive(ctx context.Context, orderID string) (*Saga, bool, error) {
	saga, err := m.store.FindLiveByOrderID(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			m.logger.Debug("No live saga for order", "orderId", orderID)
			return nil, false, nil
		}
		return nil, false, err
	}
	return saga, true, nil
}

// Start runs the startup recovery sweep: every live saga older than the
// stale timeout is marked failed. Resuming mid-flight orchestration after
// a restart is unsafe without step-level idempotency tracking, so recovery
// deliberately fails stale sagas instead and leaves them to manual retry.
// Per-saga failures during the sweep are logged and do not stop the sweep.
func (m *Manager) Start(ctx context.Context) error {
	live, err := m.store.FindByState(ctx, nonTerminalStates...)
	if err != nil {
		return fmt.Errorf("fulfillment: recovery sweep failed: %w", err)
	}

	cutoff := m.now().Add(-m.staleTimeout)
	failed := 0
	for _, saga := range live {
		if !saga.CreatedAt.Before(cutoff) {
			continue
		}
		saga.LastError = "saga timed out during recovery"
		saga.transitionTo(StateFailed, m.now())
		if err := m.store.Save(ctx, saga); err != nil {
			m.logger.Warn("Failed to mark stale saga",
				"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
			continue
		}
		failed++
	}

	m.logger.Info("Saga recovery sweep finished",
		"checked", len(live), "failed", failed)
	return nil
}

// RetrySaga manually retries a failed saga. The saga's compensation stack
// and resource IDs are cleared and the full forward flow restarts from
// inventory reservation.
func (m *Manager) RetrySaga(ctx context.Context, sagaID string) error {
	saga, err := m.store.Load(ctx, sagaID)
	if err != nil {
		return err
	}
	if saga.State != StateFailed {
		return fmt.Errorf("%w: saga %s is %s", ErrRetryNotAllowed, sagaID, saga.State)
	}
	if saga.RetryCount >= m.maxRetries {
		return fmt.Errorf("%w: saga %s has been retried %d times", ErrRetryLimitExceeded, sagaID, saga.RetryCount)
	}

	saga.RetryCount++
	saga.LastError = ""
	saga.Compensations = nil
	saga.ReservationID = ""
	saga.PaymentTransactionID = ""
	saga.ShipmentID = ""
	saga.transitionTo(StateStarted, m.now())
	if err := m.store.Save(ctx, saga); err != nil {
		return fmt.Errorf("fulfillment: failed to reset saga %s: %w", sagaID, err)
	}

	m.logger.Info("Retrying saga",
		"sagaId", saga.ID, "orderId", saga.OrderID, "attempt", saga.RetryCount)
	return m.orch.runForward(ctx, saga)
}

// Stats summarizes saga counts by state plus average completion time.
type Stats struct {
	Total                 int
	ByState               map[State]int
	Completed             int
	Failed                int
	AverageCompletionTime time.Duration
}

// GetStats computes aggregate saga statistics.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	sagas, err := m.store.FindByState(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByState: make(map[State]int)}
	var totalCompletion time.Duration
	completedWithTime := 0

	for _, saga := range sagas {
		stats.Total++
		stats.ByState[saga.State]++
		switch saga.State {
		case StateCompleted:
			stats.Completed++
		case StateFailed:
			stats.Failed++
		}
		if saga.CompletedAt != nil {
			totalCompletion += saga.CompletedAt.Sub(saga.CreatedAt)
			completedWithTime++
		}
	}
	if completedWithTime > 0 {
		stats.AverageCompletionTime = totalCompletion / time.Duration(completedWithTime)
	}
	return stats, nil
}

// ActiveSagas lists all live (non-terminal) sagas.
func (m *Manager) ActiveSagas(ctx context.Context) ([]*Saga, error) {
	return m.store.FindByState(ctx, nonTerminalStates...)
}

// FailedSagas lists all failed sagas.
func (m *Manager) FailedSagas(ctx context.Context) ([]*Saga, error) {
	return m.store.FindByState(ctx, StateFailed)
}

// GetSaga loads a saga by ID.
func (m *Manager) GetSaga(ctx context.Context, sagaID string) (*Saga, error) {
	return m.store.Load(ctx, sagaID)
}

// Cleanup deletes completed and failed sagas last updated before the
// retention window. It returns the number of sagas removed.
func (m *Manager) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	done, err := m.store.FindByState(ctx, StateCompleted, StateFailed)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-retention)
	removed := 0
	for _, saga := range done {
		if !saga.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, saga.ID); err != nil {
			m.logger.Warn("Failed to delete saga during cleanup",
				"sagaId", saga.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSagaNotFound)
}
