package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func lockedWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "core", "agent.py"), "logic")
	writeFile(t, filepath.Join(ws, "core", "brain", "reason.py"), "logic")
	writeFile(t, filepath.Join(ws, "secondary", "toolbox.py"), "tools")
	writeFile(t, filepath.Join(ws, "data", "memory_stream.json"), "[]")
	if err := os.Chmod(filepath.Join(ws, "data", "memory_stream.json"), 0755); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if err := NewGuard(ws, testLogger(t)).Lockdown(); err != nil {
		t.Fatalf("lockdown: %v", err)
	}
	return ws
}

func mode(t *testing.T, path string) fs.FileMode {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Mode().Perm()
}

func TestLockdownCoreNotWritable(t *testing.T) {
	ws := lockedWorkspace(t)

	for _, rel := range []string{"core/agent.py", "core/brain/reason.py"} {
		m := mode(t, filepath.Join(ws, rel))
		if m&0222 != 0 {
			t.Errorf("%s is writable after lockdown: %v", rel, m)
		}
	}
}

func TestLockdownDataWritableNotExecutable(t *testing.T) {
	ws := lockedWorkspace(t)

	m := mode(t, filepath.Join(ws, "data", "memory_stream.json"))
	if m&0222 == 0 {
		t.Errorf("data file not writable after lockdown: %v", m)
	}
	if m&0111 != 0 {
		t.Errorf("data file executable after lockdown: %v", m)
	}
}

func TestLockdownLeavesSecondaryAlone(t *testing.T) {
	ws := lockedWorkspace(t)

	m := mode(t, filepath.Join(ws, "secondary", "toolbox.py"))
	if m&0200 == 0 {
		t.Errorf("secondary file lost write permission: %v", m)
	}
}

func TestLockdownIdempotent(t *testing.T) {
	ws := lockedWorkspace(t)

	before := map[string]fs.FileMode{}
	paths := []string{"core/agent.py", "secondary/toolbox.py", "data/memory_stream.json"}
	for _, rel := range paths {
		before[rel] = mode(t, filepath.Join(ws, rel))
	}

	if err := NewGuard(ws, testLogger(t)).Lockdown(); err != nil {
		t.Fatalf("second lockdown: %v", err)
	}

	for _, rel := range paths {
		after := mode(t, filepath.Join(ws, rel))
		if after != before[rel] {
			t.Errorf("%s mode changed on second lockdown: %v -> %v", rel, before[rel], after)
		}
	}
}

func TestLockdownMissingTreesIsNoop(t *testing.T) {
	ws := t.TempDir()
	if err := NewGuard(ws, testLogger(t)).Lockdown(); err != nil {
		t.Errorf("lockdown on empty workspace: %v", err)
	}
}

func TestMakeWritableRestoresAccess(t *testing.T) {
	ws := lockedWorkspace(t)

	if err := MakeWritable(filepath.Join(ws, "core")); err != nil {
		t.Fatalf("make writable: %v", err)
	}
	m := mode(t, filepath.Join(ws, "core", "agent.py"))
	if m&0200 == 0 {
		t.Errorf("core file still read-only: %v", m)
	}
}
