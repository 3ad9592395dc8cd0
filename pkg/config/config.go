// Package config loads and validates the kiln project configuration.
//
// All knobs are project-level constants read from kiln.yaml at the project
// root, not per-invocation flags: the orchestrator is meant to behave
// identically no matter who invokes it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kilnworks/kiln/pkg/telemetry"
)

// DefaultFileName is the configuration file kiln looks for at the project root.
const DefaultFileName = "kiln.yaml"

// Config is the root configuration document.
type Config struct {
	// Service describes the managed container service.
	Service ServiceConfig `yaml:"service" validate:"required"`

	// Paths locates the source tree and runtime workspace.
	Paths PathsConfig `yaml:"paths" validate:"required"`

	// Tests configures the embedded test suite runs.
	Tests TestsConfig `yaml:"tests"`

	// Snapshot configures the project snapshot artifact.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Patch configures source-tree patch application.
	Patch PatchConfig `yaml:"patch"`

	// History configures the deployment history store.
	History HistoryConfig `yaml:"history"`

	// Logging configures structured logging.
	Logging telemetry.LoggingConfig `yaml:"logging"`

	// Metrics configures the watch-mode metrics endpoint.
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
}

// ServiceConfig identifies the single managed service instance.
type ServiceConfig struct {
	// Name is the compose service name.
	Name string `yaml:"name" validate:"required"`

	// Container is the container instance name bound to the service.
	Container string `yaml:"container" validate:"required"`

	// ComposeFile is the compose file driving image build and start.
	ComposeFile string `yaml:"compose_file"`

	// SettleSeconds is the delay after start before the running check.
	// Crash-on-startup is not observable instantaneously.
	SettleSeconds int `yaml:"settle_seconds" validate:"min=0"`
}

// PathsConfig locates the project trees. Source and Workspace each contain
// the fixed subtrees core, secondary and data.
type PathsConfig struct {
	// Root is the project root directory.
	Root string `yaml:"root" validate:"required"`

	// Source is the version-controlled source tree, relative to Root.
	Source string `yaml:"source" validate:"required"`

	// Workspace is the mutable runtime mirror, relative to Root.
	Workspace string `yaml:"workspace" validate:"required"`
}

// TestsConfig configures the in-container test runs.
type TestsConfig struct {
	// Command is the interpreter invocation prefix for the embedded
	// harness, executed inside the container.
	Command []string `yaml:"command" validate:"min=1"`

	// Lightweight is the fixed set of test modules run as a smoke check
	// on every standard deploy.
	Lightweight []string `yaml:"lightweight" validate:"min=1"`

	// ReportFile is the raw report path relative to the workspace data
	// tree, so the report survives the container's eventual stop.
	ReportFile string `yaml:"report_file" validate:"required"`

	// NormalizedReport is the host-visible normalized report path,
	// relative to Root.
	NormalizedReport string `yaml:"normalized_report" validate:"required"`

	// CopyOnFailureOnly limits the host-side report copy in test-only
	// mode to failing runs.
	CopyOnFailureOnly bool `yaml:"copy_on_failure_only"`
}

// SnapshotConfig configures the review snapshot artifact.
type SnapshotConfig struct {
	// Output is the snapshot path relative to Root.
	Output string `yaml:"output" validate:"required"`

	// WarnBytes is the advisory artifact size threshold.
	WarnBytes int64 `yaml:"warn_bytes" validate:"min=0"`

	// Exclude lists glob patterns of secret or irrelevant paths.
	Exclude []string `yaml:"exclude"`
}

// PatchConfig configures PatchApplier.
type PatchConfig struct {
	// DefaultFile is the patch path used when apply-patch gets no
	// argument, relative to Root.
	DefaultFile string `yaml:"default_file" validate:"required"`
}

// HistoryConfig configures the deployment history store.
type HistoryConfig struct {
	// Path is the SQLite database path relative to Root. Empty disables
	// history recording.
	Path string `yaml:"path"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	cfg.Paths.Root = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Unless overridden, paths resolve relative to the config file's
	// directory, not the invocation directory.
	if cfg.Paths.Root == "" {
		cfg.Paths.Root = filepath.Dir(path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration for an agent project laid out
// the standard way (src/ and workspace/ under the project root).
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:          "agent",
			Container:     "agent-runtime",
			ComposeFile:   "docker-compose.yml",
			SettleSeconds: 3,
		},
		Paths: PathsConfig{
			Root:      ".",
			Source:    "src",
			Workspace: "workspace",
		},
		Tests: TestsConfig{
			Command:          []string{"python", "-m", "pytest"},
			Lightweight:      []string{"tests/test_utilities.py", "tests/test_memory_manager.py"},
			ReportFile:       "test_report.json",
			NormalizedReport: "test_report_normalized.json",
		},
		Snapshot: SnapshotConfig{
			Output:    "project_snapshot.txt",
			WarnBytes: 400_000,
			Exclude:   []string{".env", "*.key", "secrets/**"},
		},
		Patch: PatchConfig{
			DefaultFile: "changes.patch",
		},
		History: HistoryConfig{
			Path: ".kiln/history.db",
		},
		Logging: telemetry.DefaultLoggingConfig(),
		Metrics: telemetry.MetricsConfig{
			Listen: "127.0.0.1:9641",
		},
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Fixed workspace subtree names. The core/secondary/data split is the
// contract between the orchestrator and the agent, not a config knob.
const (
	TreeCore      = "core"
	TreeSecondary = "secondary"
	TreeData      = "data"
	TreeTemp      = "temp"
)

// SourceDir returns the absolute source tree root.
func (c *Config) SourceDir() string {
	return filepath.Join(c.Paths.Root, c.Paths.Source)
}

// WorkspaceDir returns the absolute workspace root.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.Paths.Root, c.Paths.Workspace)
}

// SourceTree returns the absolute path of a named subtree in the source tree.
func (c *Config) SourceTree(tree string) string {
	return filepath.Join(c.SourceDir(), tree)
}

// WorkspaceTree returns the absolute path of a named subtree in the workspace.
func (c *Config) WorkspaceTree(tree string) string {
	return filepath.Join(c.WorkspaceDir(), tree)
}

// RawReportHostPath returns the host-side path of the raw test report inside
// the workspace data tree.
func (c *Config) RawReportHostPath() string {
	return filepath.Join(c.WorkspaceTree(TreeData), c.Tests.ReportFile)
}

// RawReportContainerPath returns the in-container path of the raw report.
// The workspace is bind-mounted at /app inside the instance.
func (c *Config) RawReportContainerPath() string {
	return "/app/" + TreeData + "/" + c.Tests.ReportFile
}

// NormalizedReportPath returns the host-visible normalized report path.
func (c *Config) NormalizedReportPath() string {
	return filepath.Join(c.Paths.Root, c.Tests.NormalizedReport)
}

// HistoryDBPath returns the absolute history database path, or "" when
// history recording is disabled.
func (c *Config) HistoryDBPath() string {
	if c.History.Path == "" {
		return ""
	}
	return filepath.Join(c.Paths.Root, c.History.Path)
}
