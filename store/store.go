// Package store persists the set of watched roots in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrConflict = errors.New("watched directory already exists")
	ErrNotFound = errors.New("watched directory not found")
)

// WatchedRoot is a directory under watch. LastUpdate is zero until the
// first activity is recorded.
type WatchedRoot struct {
	Path       string    `json:"path"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Store uses SQLite in WAL mode. A single connection serialises writers.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// FindAll returns every watched root ordered by path.
func (s *Store) FindAll(ctx context.Context) ([]WatchedRoot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, last_update FROM watched_dirs ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query watched dirs: %w", err)
	}
	defer rows.Close()

	roots := []WatchedRoot{}
	for rows.Next() {
		var (
			r  WatchedRoot
			ms int64
		)
		if err := rows.Scan(&r.Path, &ms); err != nil {
			return nil, fmt.Errorf("scan watched dir: %w", err)
		}
		r.LastUpdate = fromMillis(ms)
		roots = append(roots, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watched dirs: %w", err)
	}
	return roots, nil
}

func (s *Store) FindOne(ctx context.Context, path string) (WatchedRoot, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_update FROM watched_dirs WHERE path = ?`, path).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return WatchedRoot{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return WatchedRoot{}, fmt.Errorf("query watched dir %s: %w", path, err)
	}
	return WatchedRoot{Path: path, LastUpdate: fromMillis(ms)}, nil
}

// Create inserts a new root with no recorded activity.
func (s *Store) Create(ctx context.Context, path string) (WatchedRoot, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watched_dirs (path, last_update) VALUES (?, 0)`, path)
	if isUniqueViolation(err) {
		return WatchedRoot{}, fmt.Errorf("%w: %s", ErrConflict, path)
	}
	if err != nil {
		return WatchedRoot{}, fmt.Errorf("insert watched dir %s: %w", path, err)
	}
	return WatchedRoot{Path: path}, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watched_dirs WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete watched dir %s: %w", path, err)
	}
	return requireRow(res, path)
}

// FindOneAndUpdate sets the last activity time of an existing root and
// returns the updated record.
func (s *Store) FindOneAndUpdate(ctx context.Context, path string, lastUpdate time.Time) (WatchedRoot, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE watched_dirs SET last_update = ? WHERE path = ?`, lastUpdate.UnixMilli(), path)
	if err != nil {
		return WatchedRoot{}, fmt.Errorf("update watched dir %s: %w", path, err)
	}
	if err := requireRow(res, path); err != nil {
		return WatchedRoot{}, err
	}
	return WatchedRoot{Path: path, LastUpdate: fromMillis(lastUpdate.UnixMilli())}, nil
}

func requireRow(res sql.Result, path string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
