package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kilnworks/kiln/pkg/engine"
)

// Parse decodes a raw report document, rejecting documents without the
// expected top-level counts.
func Parse(data []byte) (*RawReport, error) {
	var raw RawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, engine.NewReportMalformedError("raw report is not valid JSON", err)
	}
	if raw.Tests == nil || raw.Failures == nil || raw.Errors == nil {
		return nil, engine.NewReportMalformedError("raw report is missing its top-level counts", nil)
	}
	return &raw, nil
}

// Translate converts a parsed raw report into the normalized schema. It is
// pure: the same raw report always yields the same normalized report.
func Translate(raw *RawReport) *Normalized {
	total := *raw.Tests
	failed := *raw.Failures + *raw.Errors

	status := StatusPassed
	if failed > 0 {
		status = StatusFailed
	}

	n := &Normalized{
		Status: status,
		Summary: Summary{
			Total:  total,
			Passed: total - failed,
			Failed: failed,
		},
		Cases: make([]Case, 0, len(raw.Cases)),
	}

	for _, rc := range raw.Cases {
		details := rc.Text
		if strings.TrimSpace(details) == "" {
			details = DetailPlaceholder
		}
		n.Cases = append(n.Cases, Case{
			Test:         rc.Classname + "." + rc.Name,
			Status:       caseStatus(rc.Outcome),
			ErrorMessage: rc.Message,
			Details:      details,
		})
	}
	return n
}

// TranslateFile parses and translates the raw report at path.
func TranslateFile(path string) (*Normalized, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engine.NewReportNotFoundError(fmt.Sprintf("raw report %s does not exist", path), err)
		}
		return nil, engine.NewReportMalformedError("failed to read raw report", err)
	}
	raw, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Translate(raw), nil
}

// WriteNormalized writes the normalized report as indented JSON. Field
// order is fixed by the struct, so repeated writes of the same report are
// byte-identical.
func WriteNormalized(n *Normalized, path string) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return engine.NewInternalError("failed to encode normalized report", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return engine.NewInternalError("failed to write normalized report", err)
	}
	return nil
}

func caseStatus(outcome string) string {
	switch strings.ToLower(outcome) {
	case "passed", "pass":
		return StatusPassed
	case "error", "errored":
		return StatusError
	default:
		return StatusFailed
	}
}
