package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/orderflow-io/orderflow/fulfillment"
	"github.com/orderflow-io/orderflow/order"
)

// SagaStore is an in-memory fulfillment.Store with the same optimistic
// concurrency semantics as the PostgreSQL implementation.
type SagaStore struct {
	mu    sync.RWMutex
	sagas map[string]*fulfillment.Saga
}

var _ fulfillment.Store = (*SagaStore)(nil)

// NewSagaStore creates an empty in-memory saga store.
func NewSagaStore() *SagaStore {
	return &SagaStore{
		sagas: make(map[string]*fulfillment.Saga),
	}
}

// Save creates or updates a saga. Updates require the caller's Version to
// match the stored one; the stored version is then incremented and written
// back to the caller's saga.
func (s *SagaStore) Save(ctx context.Context, saga *fulfillment.Saga) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sagas[saga.ID]
	if ok {
		if saga.Version != existing.Version {
			return fulfillment.ErrSagaConflict
		}
	} else if saga.Version != 0 {
		return fulfillment.ErrSagaConflict
	}

	saga.Version++
	s.sagas[saga.ID] = cloneSaga(saga)
	return nil
}

// Load retrieves a saga by ID.
func (s *SagaStore) Load(ctx context.Context, sagaID string) (*fulfillment.Saga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saga, ok := s.sagas[sagaID]
	if !ok {
		return nil, &fulfillment.SagaNotFoundError{SagaID: sagaID}
	}
	return cloneSaga(saga), nil
}

// FindLiveByOrderID finds the single non-terminal saga for an order.
func (s *SagaStore) FindLiveByOrderID(ctx context.Context, orderID string) (*fulfillment.Saga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, saga := range s.sagas {
		if saga.OrderID == orderID && !saga.IsTerminal() {
			return cloneSaga(saga), nil
		}
	}
	return nil, &fulfillment.SagaNotFoundError{OrderID: orderID}
}

// FindByState finds sagas in any of the given states, oldest first.
// With no states given, all sagas are returned.
func (s *SagaStore) FindByState(ctx context.Context, states ...fulfillment.State) ([]*fulfillment.Saga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[fulfillment.State]bool, len(states))
	for _, st := range states {
		wanted[st] = true
	}

	result := make([]*fulfillment.Saga, 0)
	for _, saga := range s.sagas {
		if len(states) > 0 && !wanted[saga.State] {
			continue
		}
		result = append(result, cloneSaga(saga))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes a saga.
func (s *SagaStore) Delete(ctx context.Context, sagaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sagas[sagaID]; !ok {
		return &fulfillment.SagaNotFoundError{SagaID: sagaID}
	}
	delete(s.sagas, sagaID)
	return nil
}

// Close drops all state.
func (s *SagaStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sagas = make(map[string]*fulfillment.Saga)
	return nil
}

func cloneSaga(saga *fulfillment.Saga) *fulfillment.Saga {
	clone := *saga
	if saga.Items != nil {
		clone.Items = append([]order.OrderItem(nil), saga.Items...)
	}
	if saga.Compensations != nil {
		clone.Compensations = append([]fulfillment.CompensationAction(nil), saga.Compensations...)
	}
	if saga.CompletedAt != nil {
		completed := *saga.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
