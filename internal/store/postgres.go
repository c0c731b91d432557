package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS viewing_conditions (
	id           BIGSERIAL PRIMARY KEY,
	location_key TEXT        NOT NULL,
	fetched_at   TIMESTAMPTZ NOT NULL,
	payload      JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS viewing_conditions_location_fetched
	ON viewing_conditions (location_key, fetched_at DESC);
`

const (
	insertSnapshot = `INSERT INTO viewing_conditions (location_key, fetched_at, payload) VALUES ($1, $2, $3)`

	selectLatest = `SELECT payload FROM viewing_conditions WHERE location_key = $1 ORDER BY fetched_at DESC, id DESC LIMIT 1`

	selectRange = `SELECT payload FROM viewing_conditions WHERE location_key = $1 AND fetched_at >= $2 AND fetched_at <= $3 ORDER BY fetched_at ASC, id ASC`

	trimByCount = `DELETE FROM viewing_conditions WHERE location_key = $1 AND id NOT IN (
	SELECT id FROM viewing_conditions WHERE location_key = $1 ORDER BY fetched_at DESC, id DESC LIMIT $2)`

	trimByAge = `DELETE FROM viewing_conditions WHERE location_key = $1 AND fetched_at < $2 AND id <> (
	SELECT id FROM viewing_conditions WHERE location_key = $1 ORDER BY fetched_at DESC, id DESC LIMIT 1)`
)

type snapshotRow struct {
	Payload []byte `db:"payload"`
}

// PostgresStore persists snapshots as JSONB rows.
type PostgresStore struct {
	db         *sqlx.DB
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
}

// OpenPostgres connects to dsn and applies connection pool defaults.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps db. Call EnsureSchema before first use.
func NewPostgresStore(db *sqlx.DB, maxHistory int, maxAge time.Duration) *PostgresStore {
	return &PostgresStore{
		db:         db,
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// EnsureSchema creates the snapshot table and index if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save inserts the snapshot and trims the location's history.
func (s *PostgresStore) Save(ctx context.Context, vc conditions.ViewingConditions) error {
	payload, err := encode(vc)
	if err != nil {
		return err
	}
	key := vc.Location.Key()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insertSnapshot, key, vc.FetchedAt.UTC(), payload); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", key, err)
	}
	if s.maxHistory > 0 {
		if _, err := tx.ExecContext(ctx, trimByCount, key, s.maxHistory); err != nil {
			return fmt.Errorf("trim snapshots %s: %w", key, err)
		}
	}
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge).UTC()
		if _, err := tx.ExecContext(ctx, trimByAge, key, cutoff); err != nil {
			return fmt.Errorf("expire snapshots %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot for loc.
func (s *PostgresStore) Latest(ctx context.Context, loc weather.Location) (conditions.ViewingConditions, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, selectLatest, loc.Key())
	if errors.Is(err, sql.ErrNoRows) {
		return conditions.ViewingConditions{}, ErrNotFound
	}
	if err != nil {
		return conditions.ViewingConditions{}, fmt.Errorf("select latest %s: %w", loc.Key(), err)
	}
	return decode(row.Payload)
}

// Range returns snapshots fetched between from and to (inclusive), oldest first.
func (s *PostgresStore) Range(ctx context.Context, loc weather.Location, from, to time.Time) ([]conditions.ViewingConditions, error) {
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, selectRange, loc.Key(), from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("select range %s: %w", loc.Key(), err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	out := make([]conditions.ViewingConditions, 0, len(rows))
	for _, r := range rows {
		vc, err := decode(r.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, nil
}
