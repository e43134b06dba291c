package scan

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and sequencing conditions.
var (
	// ErrNoSteps is returned when a session or sequencer has no steps.
	ErrNoSteps = errors.New("scan: no steps configured")

	// ErrCancelled is returned by Result after Cancel.
	ErrCancelled = errors.New("scan: session cancelled")

	// ErrIncomplete is returned when the frame stream ends before every
	// required step has a capture.
	ErrIncomplete = errors.New("scan: frame stream ended before all steps were captured")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("scan: session already started")

	// ErrSequenceComplete is returned when a photo is offered after the last step.
	ErrSequenceComplete = errors.New("scan: all steps already captured")

	// ErrWrongStep is returned when a photo does not belong to the current step.
	ErrWrongStep = errors.New("scan: photo does not match the current step")

	// ErrDuplicatePhoto is returned when a step already has a photo.
	ErrDuplicatePhoto = errors.New("scan: step already captured")

	// ErrNoSnapshotter is returned when a session has no way to take stills.
	ErrNoSnapshotter = errors.New("scan: snapshotter required")
)

// SetupError reports a failure acquiring a session resource. Setup
// failures are fatal to the session.
type SetupError struct {
	// Resource names what failed: "camera", "detector", "segmenter".
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("scan: setup %s: %v", e.Resource, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// RejectError is a capture-time validation failure. Hint is a user-facing
// correction.
type RejectError struct {
	StepID string
	Reason string
	Hint   string
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	return fmt.Sprintf("scan: capture rejected for %s: %s", e.StepID, e.Reason)
}

// IsReject reports whether err is a capture rejection.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}
