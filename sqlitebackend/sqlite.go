// Package sqlitebackend provides a SQLite-backed verstats storage implementation.
package sqlitebackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.byted.org/khicago/verstats"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS verstats_kv (
    stat_key TEXT PRIMARY KEY,
    value BLOB NOT NULL
);
`

const upsertSQL = `INSERT INTO verstats_kv (stat_key, value) VALUES (?, ?)
ON CONFLICT(stat_key) DO UPDATE SET value = excluded.value`

// Store persists statistics in a single SQLite table.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ verstats.Backend = (*Store)(nil)
	_ verstats.Updater = (*Store)(nil)
)

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s, err := New(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New uses an already opened database, creating the table if needed.
func New(sqlDB *sql.DB) (*Store, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return s.Delete(ctx, key)
	}
	if _, err := s.sqlDB.ExecContext(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	return readValue(ctx, s.sqlDB, key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM verstats_kv WHERE stat_key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix compares the leading characters directly so prefixes with
// LIKE wildcards need no escaping.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM verstats_kv WHERE substr(stat_key, 1, ?) = ?`,
		utf8.RuneCountInString(prefix), prefix,
	)
	if err != nil {
		return fmt.Errorf("delete prefix %s: %w", prefix, err)
	}
	return nil
}

func (s *Store) LastVersion(ctx context.Context) (string, error) {
	data, err := s.Read(ctx, verstats.LastVersionKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) SetLastVersion(ctx context.Context, version string) error {
	return s.Write(ctx, verstats.LastVersionKey, []byte(version))
}

// Update applies fn inside a transaction.
func (s *Store) Update(ctx context.Context, key string, fn verstats.UpdateFunc) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	old, err := readValue(ctx, tx, key)
	found := err == nil
	if err != nil && !errors.Is(err, verstats.ErrNotFound) {
		return err
	}

	next, keep, err := fn(old, found)
	if err != nil {
		return err
	}
	if keep && next != nil {
		_, err = tx.ExecContext(ctx, upsertSQL, key, next)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM verstats_kv WHERE stat_key = ?`, key)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", key, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readValue(ctx context.Context, q queryer, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM verstats_kv WHERE stat_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verstats.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}
