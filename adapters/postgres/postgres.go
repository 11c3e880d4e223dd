// Package postgres implements the event store adapter and saga store on
// PostgreSQL, using database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/orderflow-io/orderflow/adapters"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultBufferSize   = 100
	catchUpBatchSize    = 500
)

// Adapter is a PostgreSQL-backed event store. Subscriptions are
// polling-based; snapshots are stored one per stream.
type Adapter struct {
	db *sql.DB
}

var (
	_ adapters.EventStoreAdapter   = (*Adapter)(nil)
	_ adapters.SubscriptionAdapter = (*Adapter)(nil)
	_ adapters.SnapshotAdapter     = (*Adapter)(nil)
	_ adapters.HealthChecker       = (*Adapter)(nil)
)

// NewAdapter opens a connection pool for the given connection string.
func NewAdapter(connString string) (*Adapter, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	return &Adapter{db: db}, nil
}

// NewAdapterFromDB wraps an existing connection pool.
func NewAdapterFromDB(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// DB returns the underlying connection pool, shared with the saga store.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Initialize creates the events and snapshots tables.
func (a *Adapter) Initialize(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS events (
	global_position BIGSERIAL PRIMARY KEY,
	id              UUID        NOT NULL,
	stream_id       TEXT        NOT NULL,
	version         BIGINT      NOT NULL,
	type            TEXT        NOT NULL,
	data            JSONB       NOT NULL,
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (stream_id, version)
);
CREATE INDEX IF NOT EXISTS idx_events_stream ON events (stream_id, version);

CREATE TABLE IF NOT EXISTS snapshots (
	stream_id  TEXT        PRIMARY KEY,
	version    BIGINT      NOT NULL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to initialize schema: %w", err)
	}
	return nil
}

// Append stores events with an optimistic concurrency check. The unique
// constraint on (stream_id, version) catches writers racing past the
// version check inside the transaction.
func (a *Adapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}
	if len(events) == 0 {
		return nil, adapters.ErrNoEvents
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1`,
		streamID,
	).Scan(&currentVersion)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read stream version: %w", err)
	}

	exists := currentVersion > 0
	if err := adapters.CheckVersion(streamID, expectedVersion, currentVersion, exists); err != nil {
		return nil, err
	}

	stored := make([]adapters.StoredEvent, len(events))
	for i, record := range events {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to marshal metadata: %w", err)
		}

		eventID := uuid.NewString()
		version := currentVersion + int64(i) + 1

		var globalPosition uint64
		var createdAt time.Time
		err = tx.QueryRowContext(ctx,
			`INSERT INTO events (id, stream_id, version, type, data, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING global_position, created_at`,
			eventID, streamID, version, record.Type, record.Data, metadata,
		).Scan(&globalPosition, &createdAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, adapters.NewConcurrencyError(streamID, expectedVersion, currentVersion)
			}
			return nil, fmt.Errorf("postgres: failed to insert event: %w", err)
		}

		stored[i] = adapters.StoredEvent{
			ID:             eventID,
			StreamID:       streamID,
			Type:           record.Type,
			Data:           record.Data,
			Metadata:       record.Metadata,
			Version:        version,
			GlobalPosition: globalPosition,
			Timestamp:      createdAt,
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, adapters.NewConcurrencyError(streamID, expectedVersion, currentVersion)
		}
		return nil, fmt.Errorf("postgres: failed to commit: %w", err)
	}
	return stored, nil
}

// Load retrieves events from a stream with version greater than fromVersion.
func (a *Adapter) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT global_position, id, stream_id, version, type, data, metadata, created_at
		 FROM events
		 WHERE stream_id = $1 AND version > $2
		 ORDER BY version`,
		streamID, fromVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load stream: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetStreamInfo returns metadata about a stream.
func (a *Adapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	info := &adapters.StreamInfo{
		StreamID: streamID,
		Category: adapters.ExtractCategory(streamID),
	}
	err := a.db.QueryRowContext(ctx,
		`SELECT MAX(version), COUNT(*), MIN(created_at), MAX(created_at)
		 FROM events WHERE stream_id = $1
		 HAVING COUNT(*) > 0`,
		streamID,
	).Scan(&info.Version, &info.EventCount, &info.CreatedAt, &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, adapters.NewStreamNotFoundError(streamID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read stream info: %w", err)
	}
	return info, nil
}

// GetLastPosition returns the global position of the last stored event.
func (a *Adapter) GetLastPosition(ctx context.Context) (uint64, error) {
	var position uint64
	err := a.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(global_position), 0) FROM events`,
	).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to read last position: %w", err)
	}
	return position, nil
}

// LoadFromPosition loads events with global position greater than fromPosition.
func (a *Adapter) LoadFromPosition(ctx context.Context, fromPosition uint64, limit int) ([]adapters.StoredEvent, error) {
	limit = adapters.DefaultLimit(limit, catchUpBatchSize)

	rows, err := a.db.QueryContext(ctx,
		`SELECT global_position, id, stream_id, version, type, data, metadata, created_at
		 FROM events
		 WHERE global_position > $1
		 ORDER BY global_position
		 LIMIT $2`,
		fromPosition, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load from position: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// SubscribeAll subscribes to all events after the given global position.
func (a *Adapter) SubscribeAll(ctx context.Context, fromPosition uint64, opts ...adapters.SubscriptionOptions) (<-chan adapters.StoredEvent, error) {
	return a.poll(ctx, "", fromPosition, opts...)
}

// SubscribeCategory subscribes to events from streams in a category.
func (a *Adapter) SubscribeCategory(ctx context.Context, category string, fromPosition uint64, opts ...adapters.SubscriptionOptions) (<-chan adapters.StoredEvent, error) {
	return a.poll(ctx, category, fromPosition, opts...)
}

func (a *Adapter) poll(ctx context.Context, category string, fromPosition uint64, opts ...adapters.SubscriptionOptions) (<-chan adapters.StoredEvent, error) {
	interval := defaultPollInterval
	bufferSize := defaultBufferSize
	var onError func(error)
	if len(opts) > 0 {
		if opts[0].PollInterval > 0 {
			interval = opts[0].PollInterval
		}
		if opts[0].BufferSize > 0 {
			bufferSize = opts[0].BufferSize
		}
		onError = opts[0].OnError
	}

	out := make(chan adapters.StoredEvent, bufferSize)
	go func() {
		defer close(out)
		position := fromPosition
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			events, err := a.LoadFromPosition(ctx, position, catchUpBatchSize)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
			for _, se := range events {
				position = se.GlobalPosition
				if category != "" && adapters.ExtractCategory(se.StreamID) != category {
					continue
				}
				select {
				case out <- se:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// SaveSnapshot upserts the snapshot for a stream, keeping only the newest.
func (a *Adapter) SaveSnapshot(ctx context.Context, streamID string, version int64, data []byte) error {
	if streamID == "" {
		return adapters.ErrEmptyStreamID
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO snapshots (stream_id, version, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (stream_id) DO UPDATE
		 SET version = EXCLUDED.version, data = EXCLUDED.data, created_at = now()
		 WHERE snapshots.version < EXCLUDED.version`,
		streamID, version, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the latest snapshot for a stream, or nil.
func (a *Adapter) LoadSnapshot(ctx context.Context, streamID string) (*adapters.SnapshotRecord, error) {
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	record := &adapters.SnapshotRecord{StreamID: streamID}
	err := a.db.QueryRowContext(ctx,
		`SELECT version, data FROM snapshots WHERE stream_id = $1`,
		streamID,
	).Scan(&record.Version, &record.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load snapshot: %w", err)
	}
	return record, nil
}

// DeleteSnapshot removes the snapshot for a stream.
func (a *Adapter) DeleteSnapshot(ctx context.Context, streamID string) error {
	if streamID == "" {
		return adapters.ErrEmptyStreamID
	}

	if _, err := a.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE stream_id = $1`, streamID,
	); err != nil {
		return fmt.Errorf("postgres: failed to delete snapshot: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func scanEvents(rows *sql.Rows) ([]adapters.StoredEvent, error) {
	var result []adapters.StoredEvent
	for rows.Next() {
		var se adapters.StoredEvent
		var metadata []byte
		if err := rows.Scan(&se.GlobalPosition, &se.ID, &se.StreamID, &se.Version,
			&se.Type, &se.Data, &metadata, &se.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &se.Metadata); err != nil {
				return nil, fmt.Errorf("postgres: failed to unmarshal metadata: %w", err)
			}
		}
		result = append(result, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read events: %w", err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
