// Package workspace materializes the runtime workspace from the source tree
// and stamps the read-only/read-write boundary onto it.
//
// The source tree is the architect-owned truth; the workspace is what the
// agent actually runs from. core and secondary are fully replaced on every
// deployment, data is merged non-destructively so agent-accumulated state
// survives redeployment.
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// Syncer copies named subtrees from the source tree into the workspace.
type Syncer struct {
	srcRoot string
	wsRoot  string
	log     *telemetry.Logger
}

// NewSyncer creates a syncer between a source root and a workspace root.
func NewSyncer(srcRoot, wsRoot string, log *telemetry.Logger) *Syncer {
	return &Syncer{
		srcRoot: srcRoot,
		wsRoot:  wsRoot,
		log:     log.NewComponentLogger("sync"),
	}
}

// EnsureLayout creates the workspace root and its unmirrored temp area.
func (s *Syncer) EnsureLayout() error {
	for _, dir := range []string{s.wsRoot, filepath.Join(s.wsRoot, "temp")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return engine.NewSyncError("failed to create workspace layout", err)
		}
	}
	return nil
}

// Replace deletes the destination subtree and recopies it from source.
// Used for core and secondary on every deployment: the logic running in the
// workspace must be exactly what is in the source tree, closing any drift
// from in-place edits.
func (s *Syncer) Replace(tree string) (int, error) {
	src := filepath.Join(s.srcRoot, tree)
	dst := filepath.Join(s.wsRoot, tree)

	if _, err := os.Stat(src); err != nil {
		return 0, engine.NewSyncError(fmt.Sprintf("source tree %s is missing", tree), err)
	}

	// The previous deployment's lockdown may have revoked write access;
	// restore it or the delete fails.
	if err := MakeWritable(dst); err != nil {
		return 0, engine.NewSyncError(fmt.Sprintf("failed to unlock %s before replace", tree), err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return 0, engine.NewSyncError(fmt.Sprintf("failed to remove stale %s tree", tree), err)
	}

	n, err := s.copyTree(src, dst, true)
	if err != nil {
		return n, engine.NewSyncError(fmt.Sprintf("failed to copy %s tree", tree), err)
	}
	s.log.Debugf("replaced %s: %d files", tree, n)
	return n, nil
}

// MergePreserve recursively copies source files that are absent from the
// destination. Existing destination files are never touched, which is what
// lets accumulated agent state survive while the architect can still seed
// new default data files.
func (s *Syncer) MergePreserve(tree string) (int, error) {
	src := filepath.Join(s.srcRoot, tree)
	dst := filepath.Join(s.wsRoot, tree)

	if _, err := os.Stat(src); err != nil {
		return 0, engine.NewSyncError(fmt.Sprintf("source tree %s is missing", tree), err)
	}

	n, err := s.copyTree(src, dst, false)
	if err != nil {
		return n, engine.NewSyncError(fmt.Sprintf("failed to merge %s tree", tree), err)
	}
	s.log.Debugf("merged %s: %d new files", tree, n)
	return n, nil
}

// ForceOverwrite recursively copies every source file over the destination,
// discarding accumulated state. Only explicit reset operations use this.
func (s *Syncer) ForceOverwrite(tree string) (int, error) {
	src := filepath.Join(s.srcRoot, tree)
	dst := filepath.Join(s.wsRoot, tree)

	if _, err := os.Stat(src); err != nil {
		return 0, engine.NewSyncError(fmt.Sprintf("source tree %s is missing", tree), err)
	}

	n, err := s.copyTree(src, dst, true)
	if err != nil {
		return n, engine.NewSyncError(fmt.Sprintf("failed to overwrite %s tree", tree), err)
	}
	s.log.Debugf("force-overwrote %s: %d files", tree, n)
	return n, nil
}

// OverwriteFile force-copies a single file within a subtree. The task-only
// reset uses this to inject one directive without discarding other state.
// A missing source file fails fast so the surrounding mode aborts before
// any container change.
func (s *Syncer) OverwriteFile(tree, name string) error {
	src := filepath.Join(s.srcRoot, tree, name)
	dst := filepath.Join(s.wsRoot, tree, name)

	if _, err := os.Stat(src); err != nil {
		return engine.NewSyncError(fmt.Sprintf("source file %s/%s is missing", tree, name), err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return engine.NewSyncError("failed to create destination directory", err)
	}
	if err := copyFile(src, dst); err != nil {
		return engine.NewSyncError(fmt.Sprintf("failed to copy %s/%s", tree, name), err)
	}
	s.log.Debugf("overwrote %s/%s", tree, name)
	return nil
}

// CleanAll removes all workspace contents.
func (s *Syncer) CleanAll() error {
	return Clean(s.wsRoot)
}

// Clean removes all workspace contents, restoring write permission first so
// locked-down trees can actually be deleted. The workspace root itself is
// kept. No container action is taken here.
func Clean(wsRoot string) error {
	if _, err := os.Stat(wsRoot); os.IsNotExist(err) {
		return nil
	}
	if err := MakeWritable(wsRoot); err != nil {
		return engine.NewSyncError("failed to unlock workspace before clean", err)
	}
	entries, err := os.ReadDir(wsRoot)
	if err != nil {
		return engine.NewSyncError("failed to read workspace", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(wsRoot, entry.Name())); err != nil {
			return engine.NewSyncError(fmt.Sprintf("failed to remove %s", entry.Name()), err)
		}
	}
	return nil
}

// copyTree copies src into dst, returning the number of files copied.
// With overwrite false, existing destination files are preserved.
func (s *Syncer) copyTree(src, dst string, overwrite bool) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			// Sockets, fifos and symlinks have no place in the
			// mirrored trees.
			return nil
		}
		if !overwrite {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

// copyFile copies a single regular file, preserving the source mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	// An existing read-only destination would reject the truncate.
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.Mode().Perm()&0200 == 0 {
		if err := os.Chmod(dst, dstInfo.Mode().Perm()|0200); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile only applies the mode on create; stamp it explicitly so an
	// overwritten file also matches the source.
	return os.Chmod(dst, info.Mode().Perm())
}
