// Package snapshot serializes the project tree into a single reviewable
// artifact: a directory listing plus concatenated file contents, excluding
// the runtime workspace, version-control internals and secrets.
package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/telemetry"
)

// Options configures a Builder.
type Options struct {
	// Root is the project root to walk.
	Root string

	// WorkspaceDir is the runtime workspace, always excluded.
	WorkspaceDir string

	// Output is the artifact path; it is excluded from its own contents.
	Output string

	// WarnBytes is the advisory size threshold. The artifact is meant
	// for a context window with a soft budget, so exceeding it warns
	// rather than fails.
	WarnBytes int64

	// Exclude lists glob patterns of secret or irrelevant paths,
	// matched against slash-separated paths relative to Root.
	Exclude []string
}

// Builder produces snapshot artifacts.
type Builder struct {
	opts     Options
	excludes []glob.Glob
	log      *telemetry.Logger
}

// alwaysSkipped are version-control and orchestrator internals excluded
// regardless of configuration.
var alwaysSkipped = map[string]bool{
	".git":  true,
	".hg":   true,
	".kiln": true,
}

// NewBuilder creates a builder, compiling the exclusion globs up front so a
// bad pattern fails before any walking happens.
func NewBuilder(opts Options, log *telemetry.Logger) (*Builder, error) {
	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, engine.NewPreconditionError(
				fmt.Sprintf("invalid snapshot exclude pattern %q", pattern), err)
		}
		excludes = append(excludes, g)
	}
	return &Builder{
		opts:     opts,
		excludes: excludes,
		log:      log.NewComponentLogger("snapshot"),
	}, nil
}

// Build walks the project and writes the artifact, returning its path and
// size. File sections appear in stable lexicographic order.
func (b *Builder) Build() (string, int64, error) {
	files, dirs, err := b.collect()
	if err != nil {
		return "", 0, err
	}

	var sb strings.Builder
	sb.WriteString("PROJECT SNAPSHOT\n")
	sb.WriteString("================\n\n")
	sb.WriteString("DIRECTORY STRUCTURE\n")
	sb.WriteString("-------------------\n")
	for _, d := range dirs {
		sb.WriteString(d + "/\n")
	}
	for _, f := range files {
		sb.WriteString(f + "\n")
	}
	sb.WriteString("\n")

	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(b.opts.Root, filepath.FromSlash(rel)))
		if err != nil {
			return "", 0, engine.NewInternalError(fmt.Sprintf("failed to read %s", rel), err)
		}
		sb.WriteString("===== FILE: " + rel + " =====\n")
		sb.Write(content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			sb.WriteByte('\n')
		}
		sb.WriteString("\n")
	}

	out := filepath.Join(b.opts.Root, b.opts.Output)
	data := []byte(sb.String())
	if err := os.WriteFile(out, data, 0644); err != nil {
		return "", 0, engine.NewInternalError("failed to write snapshot artifact", err)
	}

	size := int64(len(data))
	if b.opts.WarnBytes > 0 && size > b.opts.WarnBytes {
		b.log.Warnf("snapshot is %d bytes, above the %d byte advisory threshold", size, b.opts.WarnBytes)
	}
	return out, size, nil
}

// collect walks the root and returns the included files and directories,
// both sorted, as slash-separated paths relative to the root.
func (b *Builder) collect() (files []string, dirs []string, err error) {
	wsRel := b.relSlash(b.opts.WorkspaceDir)
	outRel := filepath.ToSlash(b.opts.Output)

	err = filepath.WalkDir(b.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.opts.Root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			// Directories also match patterns like "secrets/**".
			if alwaysSkipped[d.Name()] || rel == wsRel || b.excluded(rel) || b.excluded(rel+"/") {
				return filepath.SkipDir
			}
			dirs = append(dirs, rel)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rel == outRel || b.excluded(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, nil, engine.NewInternalError("failed to walk project tree", err)
	}

	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs, nil
}

func (b *Builder) excluded(rel string) bool {
	for _, g := range b.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (b *Builder) relSlash(dir string) string {
	rel, err := filepath.Rel(b.opts.Root, dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	return filepath.ToSlash(rel)
}
