package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/orderflow-io/orderflow/fulfillment"
)

// SagaStore persists fulfillment sagas in PostgreSQL. The full saga is
// stored as JSONB with the routing columns (order ID, state) duplicated
// for indexed lookups; updates are guarded by a version check.
type SagaStore struct {
	db *sql.DB
}

var _ fulfillment.Store = (*SagaStore)(nil)

// NewSagaStore creates a saga store over an existing connection pool,
// typically shared with the event store adapter.
func NewSagaStore(db *sql.DB) *SagaStore {
	return &SagaStore{db: db}
}

// Initialize creates the sagas table.
func (s *SagaStore) Initialize(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sagas (
	id         TEXT        PRIMARY KEY,
	order_id   TEXT        NOT NULL,
	state      TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version    BIGINT      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sagas_order_state ON sagas (order_id, state);
CREATE INDEX IF NOT EXISTS idx_sagas_state ON sagas (state);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to initialize saga schema: %w", err)
	}
	return nil
}

// Save creates or updates a saga with an optimistic version check.
func (s *SagaStore) Save(ctx context.Context, saga *fulfillment.Saga) error {
	expected := saga.Version
	saga.Version = expected + 1

	data, err := json.Marshal(saga)
	if err != nil {
		saga.Version = expected
		return fmt.Errorf("postgres: failed to marshal saga: %w", err)
	}

	var result sql.Result
	if expected == 0 {
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO sagas (id, order_id, state, data, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, 1)
			 ON CONFLICT (id) DO NOTHING`,
			saga.ID, saga.OrderID, string(saga.State), data, saga.CreatedAt, saga.UpdatedAt,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE sagas
			 SET order_id = $2, state = $3, data = $4, updated_at = $5, version = version + 1
			 WHERE id = $1 AND version = $6`,
			saga.ID, saga.OrderID, string(saga.State), data, saga.UpdatedAt, expected,
		)
	}
	if err != nil {
		saga.Version = expected
		return fmt.Errorf("postgres: failed to save saga: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		saga.Version = expected
		return fmt.Errorf("postgres: failed to save saga: %w", err)
	}
	if affected == 0 {
		saga.Version = expected
		return fulfillment.ErrSagaConflict
	}
	return nil
}

// Load retrieves a saga by ID.
func (s *SagaStore) Load(ctx context.Context, sagaID string) (*fulfillment.Saga, error) {
	return s.queryOne(ctx,
		`SELECT data, version FROM sagas WHERE id = $1`,
		&fulfillment.SagaNotFoundError{SagaID: sagaID},
		sagaID,
	)
}

// FindLiveByOrderID finds the single non-terminal saga for an order.
func (s *SagaStore) FindLiveByOrderID(ctx context.Context, orderID string) (*fulfillment.Saga, error) {
	return s.queryOne(ctx,
		`SELECT data, version FROM sagas
		 WHERE order_id = $1 AND state NOT IN ($2, $3)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		&fulfillment.SagaNotFoundError{OrderID: orderID},
		orderID, string(fulfillment.StateCompleted), string(fulfillment.StateFailed),
	)
}

// FindByState finds sagas in any of the given states, oldest first.
// With no states given, all sagas are returned.
func (s *SagaStore) FindByState(ctx context.Context, states ...fulfillment.State) ([]*fulfillment.Saga, error) {
	query := `SELECT data, version FROM sagas`
	args := make([]interface{}, 0, len(states))
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, st := range states {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(st))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query sagas: %w", err)
	}
	defer rows.Close()

	var result []*fulfillment.Saga
	for rows.Next() {
		saga, err := scanSaga(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, saga)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read sagas: %w", err)
	}
	return result, nil
}

// Delete removes a saga.
func (s *SagaStore) Delete(ctx context.Context, sagaID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sagas WHERE id = $1`, sagaID)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete saga: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to delete saga: %w", err)
	}
	if affected == 0 {
		return &fulfillment.SagaNotFoundError{SagaID: sagaID}
	}
	return nil
}

// Close is a no-op; the connection pool is owned by the event store adapter.
func (s *SagaStore) Close() error {
	return nil
}

func (s *SagaStore) queryOne(ctx context.Context, query string, notFound error, args ...interface{}) (*fulfillment.Saga, error) {
	var data []byte
	var version int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load saga: %w", err)
	}
	return unmarshalSaga(data, version)
}

func scanSaga(rows *sql.Rows) (*fulfillment.Saga, error) {
	var data []byte
	var version int64
	if err := rows.Scan(&data, &version); err != nil {
		return nil, fmt.Errorf("postgres: failed to scan saga: %w", err)
	}
	return unmarshalSaga(data, version)
}

func unmarshalSaga(data []byte, version int64) (*fulfillment.Saga, error) {
	var saga fulfillment.Saga
	if err := json.Unmarshal(data, &saga); err != nil {
		return nil, fmt.Errorf("postgres: failed to unmarshal saga: %w", err)
	}
	// The version column is authoritative over the JSON payload.
	saga.Version = version
	return &saga, nil
}
