// Package report runs the embedded test suite inside the container and
// normalizes its machine-readable report.
package report

// RawReport is the structured record the in-container harness writes.
// Counts are pointers so a document missing the expected top-level shape is
// distinguishable from one with zero counts.
type RawReport struct {
	Tests    *int      `json:"tests"`
	Failures *int      `json:"failures"`
	Errors   *int      `json:"errors"`
	Cases    []RawCase `json:"cases"`
}

// RawCase is one test case as recorded by the harness.
type RawCase struct {
	Classname string `json:"classname"`
	Name      string `json:"name"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	Text      string `json:"text"`
}

// Case statuses in the normalized report.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
	StatusError  = "ERROR"
)

// DetailPlaceholder fills the details field when the raw case carries no
// free-text body.
const DetailPlaceholder = "No detail captured."

// Normalized is the framework-agnostic summary derived 1:1 from a RawReport.
type Normalized struct {
	// Status is FAILED if any case failed or errored, else PASSED.
	Status string `json:"status"`

	// Summary carries the aggregate counts.
	Summary Summary `json:"summary"`

	// Cases maps the raw cases one to one.
	Cases []Case `json:"cases"`
}

// Summary aggregates case counts. Failed includes errored cases.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Case is one normalized test case record.
type Case struct {
	// Test is the "<group>.<name>" identifier.
	Test string `json:"test"`

	// Status is PASSED, FAILED or ERROR.
	Status string `json:"status"`

	// ErrorMessage is the short failure message, empty on success.
	ErrorMessage string `json:"error_message"`

	// Details is the free-text body, or DetailPlaceholder when the raw
	// record carries none.
	Details string `json:"details"`
}
