// Package stores persists deployment history in SQLite so the operator can
// audit what was deployed when, and with what test outcome.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// A sequential CLI never needs more than one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded filesystem.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateDeploy records the start of an orchestrator run.
func (s *SQLiteStore) CreateDeploy(ctx context.Context, d *Deploy) error {
	query := `
		INSERT INTO deploys (id, mode, state, started_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, d.ID, d.Mode, d.State, d.StartedAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deploy record: %w", err)
	}
	return nil
}

// FinishDeploy records the final state, error and test counts of a run.
func (s *SQLiteStore) FinishDeploy(ctx context.Context, d *Deploy) error {
	query := `
		UPDATE deploys
		SET state = ?, completed_at = ?, error = ?,
		    tests_total = ?, tests_passed = ?, tests_failed = ?, report_path = ?
		WHERE id = ?
	`
	now := time.Now()
	if d.CompletedAt == nil {
		d.CompletedAt = &now
	}
	result, err := s.db.ExecContext(ctx, query,
		d.State, d.CompletedAt, d.Error,
		d.TestsTotal, d.TestsPassed, d.TestsFailed, d.ReportPath,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish deploy record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deploy record not found: %s", d.ID)
	}
	return nil
}

// ListDeploys returns recent runs, newest first.
func (s *SQLiteStore) ListDeploys(ctx context.Context, limit int) ([]*Deploy, error) {
	query := `
		SELECT id, mode, state, started_at, completed_at, error,
		       tests_total, tests_passed, tests_failed, report_path, created_at
		FROM deploys
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deploys: %w", err)
	}
	defer rows.Close()

	deploys := []*Deploy{}
	for rows.Next() {
		d := &Deploy{}
		err := rows.Scan(
			&d.ID, &d.Mode, &d.State, &d.StartedAt, &d.CompletedAt, &d.Error,
			&d.TestsTotal, &d.TestsPassed, &d.TestsFailed, &d.ReportPath, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deploy row: %w", err)
		}
		deploys = append(deploys, d)
	}
	return deploys, rows.Err()
}
