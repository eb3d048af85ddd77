package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for events. It is the only
// component allowed to arbitrate concurrent writers: deduplication happens in
// the unique constraint on id, never in application code.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertIfAbsent persists an event and reports inserted=false when a row with
// the same id already exists. The check and the insert are a single atomic
// statement, so concurrent deliveries of the same id cannot both insert.
func (p *PostgresStore) InsertIfAbsent(ctx context.Context, ev models.Event) (bool, error) {
	if ev.ID == uuid.Nil || ev.EventName == "" {
		return false, errors.New("event id and event_name required")
	}

	props := ev.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return false, err
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err = p.pool.QueryRow(ctx, `
		INSERT INTO events(id, distinct_id, event_name, properties, received_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
		RETURNING 1
	`, ev.ID, ev.DistinctID, ev.EventName, propsJSON, ev.ReceivedAt).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// QueryRange returns events with received_at in [from, to], ascending.
func (p *PostgresStore) QueryRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, distinct_id, event_name, properties, received_at
		FROM events
		WHERE received_at >= $1 AND received_at <= $2
		ORDER BY received_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Recent returns the newest events first, up to limit.
func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, distinct_id, event_name, properties, received_at
		FROM events
		ORDER BY received_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// InsertBatch writes events in one round trip, skipping duplicates. Used by
// the seeder; the ingestion path always goes through InsertIfAbsent.
func (p *PostgresStore) InsertBatch(ctx context.Context, events []models.Event) error {
	batch := &pgx.Batch{}
	for _, ev := range events {
		props := ev.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		propsJSON, err := json.Marshal(props)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO events(id, distinct_id, event_name, properties, received_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO NOTHING
		`, ev.ID, ev.DistinctID, ev.EventName, propsJSON, ev.ReceivedAt)
	}
	return p.pool.SendBatch(ctx, batch).Close()
}

// TruncateEvents deletes all stored events. Seeder -clean path only.
func (p *PostgresStore) TruncateEvents(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `TRUNCATE events`)
	return err
}

func scanEvents(rows pgx.Rows) ([]models.Event, error) {
	var out []models.Event
	for rows.Next() {
		var ev models.Event
		var propsJSON []byte
		if err := rows.Scan(&ev.ID, &ev.DistinctID, &ev.EventName, &propsJSON, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		if len(propsJSON) > 0 {
			if err := json.Unmarshal(propsJSON, &ev.Properties); err != nil {
				return nil, err
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
