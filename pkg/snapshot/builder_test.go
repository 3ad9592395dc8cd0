package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilnworks/kiln/pkg/telemetry"
)

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func buildSnapshot(t *testing.T, root string, exclude []string) string {
	t.Helper()
	b, err := NewBuilder(Options{
		Root:         root,
		WorkspaceDir: filepath.Join(root, "workspace"),
		Output:       "snapshot.txt",
		Exclude:      exclude,
	}, testLogger(t))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	path, size, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if int64(len(data)) != size {
		t.Errorf("reported size %d, artifact is %d bytes", size, len(data))
	}
	return string(data)
}

func TestBuildExcludesWorkspaceAndSecrets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/core/agent.py", "print('agent')\n")
	writeFile(t, root, "workspace/core/agent.py", "synced copy\n")
	writeFile(t, root, ".env", "API_KEY=hunter2\n")
	writeFile(t, root, "secrets/token.txt", "tok\n")
	writeFile(t, root, ".git/config", "[core]\n")

	out := buildSnapshot(t, root, []string{".env", "*.key", "secrets/**"})

	if !strings.Contains(out, "===== FILE: src/core/agent.py =====") {
		t.Error("source file missing from snapshot")
	}
	for _, leaked := range []string{"workspace/", "hunter2", "secrets/", ".git/"} {
		if strings.Contains(out, leaked) {
			t.Errorf("snapshot leaked %q", leaked)
		}
	}
}

func TestBuildExcludesOwnArtifact(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/core/agent.py", "x = 1\n")

	buildSnapshot(t, root, nil)
	out := buildSnapshot(t, root, nil)
	if strings.Contains(out, "FILE: snapshot.txt") {
		t.Error("snapshot embedded its own previous artifact")
	}
}

func TestBuildStableOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/core/b.py", "b\n")
	writeFile(t, root, "src/core/a.py", "a\n")
	writeFile(t, root, "docker-compose.yml", "services: {}\n")

	out := buildSnapshot(t, root, nil)
	first := strings.Index(out, "FILE: docker-compose.yml")
	second := strings.Index(out, "FILE: src/core/a.py")
	third := strings.Index(out, "FILE: src/core/b.py")
	if first == -1 || second == -1 || third == -1 {
		t.Fatalf("expected all three file sections:\n%s", out)
	}
	if !(first < second && second < third) {
		t.Error("file sections not in lexicographic order")
	}
}

func TestBuildListsDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/data/current_task.txt", "idle\n")

	out := buildSnapshot(t, root, nil)
	for _, want := range []string{"src/\n", "src/data/\n", "src/data/current_task.txt\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q", want)
		}
	}
}

func TestNewBuilderRejectsBadPattern(t *testing.T) {
	_, err := NewBuilder(Options{Root: t.TempDir(), Exclude: []string{"[unclosed"}}, testLogger(t))
	if err == nil {
		t.Fatal("malformed glob accepted")
	}
}
