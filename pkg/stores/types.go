package stores

import (
	"context"
	"time"
)

// Deploy is one recorded orchestrator run.
type Deploy struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	State       string     `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	TestsTotal  *int       `json:"tests_total,omitempty"`
	TestsPassed *int       `json:"tests_passed,omitempty"`
	TestsFailed *int       `json:"tests_failed,omitempty"`
	ReportPath  *string    `json:"report_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Store persists deployment history.
type Store interface {
	// Init opens the underlying database.
	Init(ctx context.Context) error

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// Close closes the store.
	Close() error

	// CreateDeploy records the start of an orchestrator run.
	CreateDeploy(ctx context.Context, d *Deploy) error

	// FinishDeploy records the final state of a run.
	FinishDeploy(ctx context.Context, d *Deploy) error

	// ListDeploys returns recent runs, newest first.
	ListDeploys(ctx context.Context, limit int) ([]*Deploy, error)
}
