package engine

import "context"

// ContainerRuntime manages the single named service instance. The concrete
// implementation lives in pkg/container; the orchestrator only sees this
// contract so it can be tested against a fake runtime.
type ContainerRuntime interface {
	// Check verifies the runtime's external tooling is available,
	// before any side effect is attempted.
	Check(ctx context.Context) error

	// Quiesce stops and removes the instance. Already stopped or absent
	// is success, never an error.
	Quiesce(ctx context.Context) error

	// BuildAndStart rebuilds the image from the current workspace and
	// starts exactly one instance.
	BuildAndStart(ctx context.Context) error

	// IsRunning reports whether the instance process is up.
	IsRunning(ctx context.Context) (bool, error)

	// Logs returns the most recent tail lines of instance output.
	Logs(ctx context.Context, tail int) (string, error)
}

// FileSync copies named subtrees between the source tree and the workspace.
type FileSync interface {
	// EnsureLayout creates the workspace root and its temp area.
	EnsureLayout() error

	// Replace deletes the destination subtree and recopies it from
	// source, returning the file count.
	Replace(tree string) (int, error)

	// MergePreserve copies only files absent from the destination.
	MergePreserve(tree string) (int, error)

	// ForceOverwrite copies every file regardless of destination state.
	ForceOverwrite(tree string) (int, error)

	// OverwriteFile force-copies a single file within a subtree,
	// failing fast when the source is missing.
	OverwriteFile(tree, name string) error

	// CleanAll removes all workspace contents, restoring write
	// permission first.
	CleanAll() error
}

// PermissionLocker stamps the access policy onto the synced workspace.
type PermissionLocker interface {
	Lockdown() error
}

// TestRunner executes the embedded suite inside the running container.
type TestRunner interface {
	Run(ctx context.Context, sel TestSelection) (*TestRunResult, error)
}

// Translator converts a raw structured test report into the normalized
// schema.
type Translator interface {
	// Summarize parses and translates the raw report at rawPath.
	Summarize(rawPath string) (*TestSummary, error)

	// WriteNormalized writes the normalized form of the raw report at
	// rawPath to outPath.
	WriteNormalized(rawPath, outPath string) error
}

// SeedValidator checks the seed data tree before a destructive reset.
type SeedValidator func(dataDir string) error
