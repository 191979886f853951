package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DefaultTable is the table PostgresBackend uses unless told otherwise.
const DefaultTable = "bgloc_settings"

// PostgresBackend implements Backend on a PostgreSQL table.
type PostgresBackend struct {
	db    *sql.DB
	table string
}

// NewPostgresBackend creates a backend on db. An empty table selects
// DefaultTable.
func NewPostgresBackend(db *sql.DB, table string) *PostgresBackend {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresBackend{db: db, table: table}
}

// EnsureSchema creates the settings table if it does not exist.
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, p.table))
	if err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}
	return nil
}

// Get implements Backend.
func (p *PostgresBackend) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := psq.Select("value").
		From(p.table).
		Where(sq.Eq{"name": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building select: %w", err)
	}

	var value string
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting: %w", err)
	}
	return value, true, nil
}

// Set implements Backend.
func (p *PostgresBackend) Set(ctx context.Context, key, value string) error {
	query, args, err := p.upsert(key, value)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing setting: %w", err)
	}
	return nil
}

// SetMany implements Backend in a single transaction.
func (p *PostgresBackend) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		query, args, err := p.upsert(k, values[k])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("writing setting %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

func (p *PostgresBackend) upsert(key, value string) (string, []interface{}, error) {
	query, args, err := psq.Insert(p.table).
		Columns("name", "value", "updated_at").
		Values(key, value, sq.Expr("now()")).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building upsert: %w", err)
	}
	return query, args, nil
}
