package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), ".kiln", "history.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestDeployLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := &Deploy{
		ID:        "run-1",
		Mode:      "test-deploy",
		State:     "verifying",
		StartedAt: time.Now().Add(-time.Minute),
	}
	if err := store.CreateDeploy(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	total, passed, failed := 10, 8, 2
	errMsg := "[test] 2 of 10 test cases failed"
	report := "test_report_normalized.json"
	d.State = "stopped"
	d.TestsTotal, d.TestsPassed, d.TestsFailed = &total, &passed, &failed
	d.Error = &errMsg
	d.ReportPath = &report
	if err := store.FinishDeploy(ctx, d); err != nil {
		t.Fatalf("finish: %v", err)
	}

	deploys, err := store.ListDeploys(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(deploys) != 1 {
		t.Fatalf("deploys = %d, want 1", len(deploys))
	}

	got := deploys[0]
	if got.ID != "run-1" || got.Mode != "test-deploy" || got.State != "stopped" {
		t.Errorf("record = %+v", got)
	}
	if got.TestsFailed == nil || *got.TestsFailed != 2 {
		t.Errorf("tests failed = %v", got.TestsFailed)
	}
	if got.Error == nil || *got.Error != errMsg {
		t.Errorf("error = %v", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
}

func TestFinishUnknownDeploy(t *testing.T) {
	store := newTestStore(t)
	err := store.FinishDeploy(context.Background(), &Deploy{ID: "ghost", State: "running"})
	if err == nil {
		t.Fatal("finishing an unrecorded run succeeded")
	}
}

func TestListDeploysOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"old", "mid", "new"} {
		d := &Deploy{
			ID:        id,
			Mode:      "deploy",
			State:     "running",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateDeploy(ctx, d); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	deploys, err := store.ListDeploys(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(deploys) != 2 {
		t.Fatalf("deploys = %d, want 2", len(deploys))
	}
	if deploys[0].ID != "new" || deploys[1].ID != "mid" {
		t.Errorf("order = [%s, %s], want [new, mid]", deploys[0].ID, deploys[1].ID)
	}
}
