//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// ValidationError reports a malformed SearchRequest. It is the only error the
// pipeline returns to its caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Stage names a state of the search state machine.
type Stage string

// Pipeline stages, in the order a driver-path run visits them.
const (
	StageStart        Stage = "start"
	StageAcquire      Stage = "acquire"
	StageNavigate     Stage = "navigate"
	StageCaptchaCheck Stage = "captcha_check"
	StageSubmit       Stage = "submit"
	StageExtract      Stage = "extract"
	StageHTTPPath     Stage = "http_path"
	StageResolved     Stage = "resolved"
)

// FailureKind classifies a recoverable stage failure.
type FailureKind string

// Failure kinds absorbed by the pipeline's fallback transitions.
const (
	AcquisitionFailure FailureKind = "acquisition_failure"
	NavigationFailure  FailureKind = "navigation_failure"
	CaptchaEncountered FailureKind = "captcha_encountered"
	FormFillFailure    FailureKind = "form_fill_failure"
	NetworkFailure     FailureKind = "network_failure"
	ExtractionGap      FailureKind = "extraction_gap"
)

// StageError is an internal failure of one pipeline stage.
type StageError struct {
	Stage   Stage
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Stage, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Stage, e.Kind, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
