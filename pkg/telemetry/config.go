package telemetry

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string `yaml:"level"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `yaml:"output"`

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool `yaml:"enable_caller"`
}

// MetricsConfig configures the Prometheus metrics endpoint used by watch mode.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	Enabled bool `yaml:"enabled"`

	// Listen is the address the metrics HTTP server binds to.
	Listen string `yaml:"listen"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`
}

// DefaultLoggingConfig returns the logging defaults used when kiln.yaml
// carries no logging section.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}
