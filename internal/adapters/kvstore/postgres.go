package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq" // postgres driver
)

var validTable = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGStore persists values as rows of a two-column Postgres table.
type PGStore struct {
	db    *sql.DB
	table string
}

// OpenPostgres connects with lib/pq and returns a PGStore with its schema ensured.
func OpenPostgres(ctx context.Context, dsn, table string) (*PGStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewPGStore(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPGStore wraps an existing database handle.
func NewPGStore(db *sql.DB, table string) (*PGStore, error) {
	if !validTable.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidKey, table)
	}
	return &PGStore{db: db, table: table}, nil
}

// EnsureSchema creates the key-value table if it does not exist.
func (p *PGStore) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, p.table)
	if _, err := p.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", p.table, err)
	}
	return nil
}

// Ping verifies connectivity to Postgres.
func (p *PGStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Get implements Store.
func (p *PGStore) Get(ctx context.Context, key string) ([]byte, error) {
	q := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table)
	var value []byte
	if err := p.db.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

// Put implements Store.
func (p *PGStore) Put(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, p.table)
	if _, err := p.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (p *PGStore) Close() error {
	return p.db.Close()
}
