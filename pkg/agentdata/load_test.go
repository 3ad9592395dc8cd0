package agentdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilnworks/kiln/pkg/engine"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMemoryStream(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "valid entries",
			content: `[{"timestamp":"2026-08-25T10:00:00","type":"thought","content":"plan the day"},{"timestamp":"2026-08-25T10:01:00","type":"action","content":"ran check_weather","action_id":"a1"}]`,
			want:    2,
		},
		{name: "empty stream", content: `[]`, want: 0},
		{name: "not json", content: `timestamp: nope`, wantErr: true},
		{name: "not an array", content: `{"timestamp":"x"}`, wantErr: true},
		{
			name:    "unknown type",
			content: `[{"timestamp":"2026-08-25T10:00:00","type":"daydream","content":"x"}]`,
			wantErr: true,
		},
		{
			name:    "missing content",
			content: `[{"timestamp":"2026-08-25T10:00:00","type":"thought"}]`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, MemoryStreamFile, tt.content)
			entries, err := LoadMemoryStream(path)
			if tt.wantErr {
				if !engine.IsSyncFailed(err) {
					t.Fatalf("expected SYNC_FAILED, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("entries = %d, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestLoadActionQueue(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, ActionQueueFile,
		`[{"name":"send_report","arguments":{"to":"ops"},"raw_text":"send_report(to=ops)"}]`)
	actions, err := LoadActionQueue(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(actions) != 1 || actions[0].Name != "send_report" {
		t.Errorf("actions = %+v", actions)
	}
	if actions[0].Success != nil {
		t.Error("pending action should have nil success")
	}

	path = writeFile(t, dir, ActionQueueFile, `[{"arguments":{}}]`)
	if _, err := LoadActionQueue(path); !engine.IsSyncFailed(err) {
		t.Fatalf("nameless action accepted: %v", err)
	}
}

func TestLoadResourceState(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, ResourceStateFile, "daily_reasoning_count: 7\nlast_run_date: \"2026-08-25\"\n")
	state, err := LoadResourceState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.DailyReasoningCount != 7 || state.LastRunDate != "2026-08-25" {
		t.Errorf("state = %+v", state)
	}

	path = writeFile(t, dir, ResourceStateFile, "daily_reasoning_count: 3\nlast_run_date: \"yesterday\"\n")
	if _, err := LoadResourceState(path); !engine.IsSyncFailed(err) {
		t.Fatalf("malformed date accepted: %v", err)
	}
}

func TestLoadCurrentTask(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, CurrentTaskFile, "  summarize yesterday's observations\n")
	task, err := LoadCurrentTask(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if task != "summarize yesterday's observations" {
		t.Errorf("task = %q", task)
	}

	path = writeFile(t, dir, CurrentTaskFile, "   \n\n")
	if _, err := LoadCurrentTask(path); !engine.IsSyncFailed(err) {
		t.Fatalf("blank directive accepted: %v", err)
	}
}

func TestValidateSeed(t *testing.T) {
	t.Run("empty dir passes", func(t *testing.T) {
		if err := ValidateSeed(t.TempDir()); err != nil {
			t.Fatalf("empty seed dir: %v", err)
		}
	})

	t.Run("valid partial seed passes", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, CurrentTaskFile, "bootstrap\n")
		writeFile(t, dir, MemoryStreamFile, `[]`)
		if err := ValidateSeed(dir); err != nil {
			t.Fatalf("valid seed: %v", err)
		}
	})

	t.Run("malformed present file fails", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, CurrentTaskFile, "bootstrap\n")
		writeFile(t, dir, ActionQueueFile, `{broken`)
		if err := ValidateSeed(dir); !engine.IsSyncFailed(err) {
			t.Fatalf("malformed seed accepted: %v", err)
		}
	})
}
