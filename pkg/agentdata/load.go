package agentdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kilnworks/kiln/pkg/engine"
)

var validate = validator.New()

// LoadMemoryStream loads and validates the memory stream file.
func LoadMemoryStream(path string) ([]Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewSyncError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	var entries []Memory
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, engine.NewSyncError(fmt.Sprintf("%s is not a memory stream", filepath.Base(path)), err)
	}
	for i, entry := range entries {
		if err := validate.Struct(entry); err != nil {
			return nil, engine.NewSyncError(fmt.Sprintf("memory entry %d is malformed", i), err)
		}
	}
	return entries, nil
}

// LoadActionQueue loads and validates the action queue file.
func LoadActionQueue(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewSyncError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, engine.NewSyncError(fmt.Sprintf("%s is not an action queue", filepath.Base(path)), err)
	}
	for i, action := range actions {
		if err := validate.Struct(action); err != nil {
			return nil, engine.NewSyncError(fmt.Sprintf("queued action %d is malformed", i), err)
		}
	}
	return actions, nil
}

// LoadResourceState loads and validates the resource state file.
func LoadResourceState(path string) (*ResourceState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewSyncError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	var state ResourceState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, engine.NewSyncError(fmt.Sprintf("%s is not a resource state", filepath.Base(path)), err)
	}
	if err := validate.Struct(state); err != nil {
		return nil, engine.NewSyncError("resource state is malformed", err)
	}
	return &state, nil
}

// LoadCurrentTask loads the current task directive.
func LoadCurrentTask(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", engine.NewSyncError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	task := strings.TrimSpace(string(data))
	if task == "" {
		return "", engine.NewSyncError("current task directive is empty", nil)
	}
	return task, nil
}

// ValidateSeed checks every known seed file present under dataDir. Reset
// modes call this before a force-overwrite so malformed architect-supplied
// defaults never clobber valid agent state. Absent files are fine; only a
// present-but-malformed file is an error.
func ValidateSeed(dataDir string) error {
	checks := []struct {
		name string
		load func(string) error
	}{
		{MemoryStreamFile, func(p string) error { _, err := LoadMemoryStream(p); return err }},
		{ActionQueueFile, func(p string) error { _, err := LoadActionQueue(p); return err }},
		{ResourceStateFile, func(p string) error { _, err := LoadResourceState(p); return err }},
		{CurrentTaskFile, func(p string) error { _, err := LoadCurrentTask(p); return err }},
	}
	for _, check := range checks {
		path := filepath.Join(dataDir, check.name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := check.load(path); err != nil {
			return err
		}
	}
	return nil
}
