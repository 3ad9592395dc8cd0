package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// Guard stamps the read-only/read-write boundary onto workspace subtrees
// after a sync. Running it twice produces the same filesystem state.
type Guard struct {
	wsRoot string
	log    *telemetry.Logger
}

// NewGuard creates a permission guard over a workspace root.
func NewGuard(wsRoot string, log *telemetry.Logger) *Guard {
	return &Guard{
		wsRoot: wsRoot,
		log:    log.NewComponentLogger("guard"),
	}
}

// Lockdown applies the per-tree access policy:
//
//   - core: every regular file loses write permission for all principals.
//     The agent must never be able to mutate its own primary logic at the
//     filesystem level, even if a bug in that logic attempts it.
//   - data: every regular file becomes readable and writable by all
//     principals and loses execute permission. Data is never code.
//   - secondary: untouched; its mutability is intentional, and edits are
//     discarded on the next deploy unless promoted into the source tree.
func (g *Guard) Lockdown() error {
	if err := g.stampFiles(filepath.Join(g.wsRoot, "core"), func(mode fs.FileMode) fs.FileMode {
		return mode &^ 0222
	}); err != nil {
		return engine.NewSyncError("failed to lock core tree", err)
	}

	if err := g.stampFiles(filepath.Join(g.wsRoot, "data"), func(fs.FileMode) fs.FileMode {
		return 0666
	}); err != nil {
		return engine.NewSyncError("failed to stamp data tree", err)
	}

	g.log.Debug("workspace permissions stamped")
	return nil
}

// stampFiles applies a mode transform to every regular file under root.
// Directories keep their modes so the trees stay traversable.
func (g *Guard) stampFiles(root string, transform func(fs.FileMode) fs.FileMode) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		want := transform(info.Mode().Perm())
		if want == info.Mode().Perm() {
			return nil
		}
		if err := os.Chmod(path, want); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		return nil
	})
}

// MakeWritable restores owner write permission on everything under root,
// undoing a previous lockdown so trees can be deleted or overwritten.
func MakeWritable(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().Perm()&0200 != 0 {
			return nil
		}
		return os.Chmod(path, info.Mode().Perm()|0200)
	})
}
