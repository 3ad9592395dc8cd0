package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an orchestration failure by the phase that produced it.
type ErrorKind string

const (
	// ErrorKindPrecondition indicates a missing external tool or expected
	// file, reported before any side effect is attempted.
	ErrorKindPrecondition ErrorKind = "precondition"

	// ErrorKindSync indicates a failure while materializing the workspace.
	// A sync failure aborts the mode before any container change.
	ErrorKindSync ErrorKind = "sync"

	// ErrorKindContainer indicates a container lifecycle failure,
	// including a crash observed after start.
	ErrorKindContainer ErrorKind = "container"

	// ErrorKindTest indicates a test-run failure of any flavor: failing
	// cases, an unreachable runner, or a missing report.
	ErrorKindTest ErrorKind = "test"

	// ErrorKindPatch indicates a partially applied source patch.
	ErrorKindPatch ErrorKind = "patch"

	// ErrorKindInternal indicates a defect in the orchestrator itself.
	ErrorKindInternal ErrorKind = "internal"
)

// Error codes distinguishing failures within a kind.
const (
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeSyncFailed         = "SYNC_FAILED"
	CodeContainerCrashed   = "CONTAINER_CRASHED"
	CodeRunnerUnavailable  = "RUNNER_UNAVAILABLE"
	CodeTestsFailed        = "TESTS_FAILED"
	CodeReportMissing      = "REPORT_MISSING"
	CodeReportNotFound     = "REPORT_NOT_FOUND"
	CodeReportMalformed    = "REPORT_MALFORMED"
	CodePartialPatch       = "PARTIAL_PATCH"
	CodeInternal           = "INTERNAL_ERROR"
)

// EngineError represents a classified orchestration error with context.
type EngineError struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code distinguishes failures within a kind.
	Code string `json:"code,omitempty"`

	// Step names the state-machine step that failed, if applicable.
	Step string `json:"step,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s (step=%s)%s", e.Kind, e.Message, e.Step, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Kind, e.Message, e.unwrapSuffix())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithStep adds step context to an error.
func (e *EngineError) WithStep(step string) *EngineError {
	e.Step = step
	return e
}

// NewPreconditionError creates a precondition failure.
func NewPreconditionError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindPrecondition, Code: CodePreconditionFailed, Message: message, Err: err}
}

// NewSyncError creates a workspace sync failure.
func NewSyncError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindSync, Code: CodeSyncFailed, Message: message, Err: err}
}

// NewContainerCrashedError creates a post-start crash failure.
func NewContainerCrashedError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindContainer, Code: CodeContainerCrashed, Message: message, Err: err}
}

// NewRunnerUnavailableError reports tests requested against a container that
// is not running. Distinct from a test failure.
func NewRunnerUnavailableError(message string) *EngineError {
	return &EngineError{Kind: ErrorKindTest, Code: CodeRunnerUnavailable, Message: message}
}

// NewTestsFailedError reports a suite that ran to completion with failing
// or erroring cases.
func NewTestsFailedError(message string) *EngineError {
	return &EngineError{Kind: ErrorKindTest, Code: CodeTestsFailed, Message: message}
}

// NewReportMissingError reports a runner that exited without producing a
// report file. Distinct from tests that ran and failed.
func NewReportMissingError(message string) *EngineError {
	return &EngineError{Kind: ErrorKindTest, Code: CodeReportMissing, Message: message}
}

// NewReportNotFoundError reports a translate call against a missing path.
func NewReportNotFoundError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindTest, Code: CodeReportNotFound, Message: message, Err: err}
}

// NewReportMalformedError reports a raw report without the expected
// top-level structure.
func NewReportMalformedError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindTest, Code: CodeReportMalformed, Message: message, Err: err}
}

// NewPartialPatchError reports a patch applied with rejected hunks.
// Manual reconciliation is required; the operation is not retried.
func NewPartialPatchError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindPatch, Code: CodePartialPatch, Message: message, Err: err}
}

// NewInternalError creates an internal orchestrator error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindInternal, Code: CodeInternal, Message: message, Err: err}
}

// codeOf extracts the EngineError code from an error chain.
func codeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsPrecondition returns true for precondition failures.
func IsPrecondition(err error) bool { return codeOf(err) == CodePreconditionFailed }

// IsSyncFailed returns true for workspace sync failures.
func IsSyncFailed(err error) bool { return codeOf(err) == CodeSyncFailed }

// IsContainerCrashed returns true for post-start crashes.
func IsContainerCrashed(err error) bool { return codeOf(err) == CodeContainerCrashed }

// IsRunnerUnavailable returns true when tests were requested against a
// non-running container.
func IsRunnerUnavailable(err error) bool { return codeOf(err) == CodeRunnerUnavailable }

// IsTestsFailed returns true for suites that ran with failing cases.
func IsTestsFailed(err error) bool { return codeOf(err) == CodeTestsFailed }

// IsReportMissing returns true when the runner left no report behind.
func IsReportMissing(err error) bool { return codeOf(err) == CodeReportMissing }

// IsPartialPatch returns true for partially applied patches.
func IsPartialPatch(err error) bool { return codeOf(err) == CodePartialPatch }
