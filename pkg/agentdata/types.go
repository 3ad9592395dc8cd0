// Package agentdata models the agent's seed and operating data files as a
// closed set of named record types. The files are loosely typed on disk;
// loads here validate them and reject silently-malformed records instead of
// propagating them.
package agentdata

// Seed/operating data file names under the data tree.
const (
	MemoryStreamFile  = "memory_stream.json"
	ActionQueueFile   = "action_queue.json"
	ResourceStateFile = "resource_state.yaml"
	CurrentTaskFile   = "current_task.txt"
)

// Memory is a single entry in the agent's long-term memory stream.
type Memory struct {
	Timestamp string `json:"timestamp" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=action observation thought plan"`
	Content   string `json:"content" validate:"required"`
	ActionID  string `json:"action_id,omitempty"`
}

// Action is a single queued executable action proposed by the agent.
type Action struct {
	Name      string         `json:"name" validate:"required"`
	Arguments map[string]any `json:"arguments"`
	RawText   string         `json:"raw_text,omitempty"`
	Success   *bool          `json:"success,omitempty"`
}

// ResourceState tracks the agent's daily resource budget.
type ResourceState struct {
	DailyReasoningCount int    `yaml:"daily_reasoning_count" validate:"min=0"`
	LastRunDate         string `yaml:"last_run_date" validate:"required,datetime=2006-01-02"`
}
