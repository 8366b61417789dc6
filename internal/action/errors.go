package action

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy is returned by Trigger while another request is not yet
	// dismissed.
	ErrBusy = errors.New("another action is pending")

	// ErrNotActionable is returned by Trigger for a record whose remote
	// status is already terminal for the action.
	ErrNotActionable = errors.New("record is not actionable")

	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// TransitionError names the refused transition. It matches
// ErrInvalidTransition with errors.Is.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s from %s: %v", e.Op, e.From, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError is raised by a plan before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StepError records which step of a request failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PartialFailure is a step failure that happened after at least one
// mutating step had already succeeded. The backend holds the effects of
// Completed and nothing of the failed step onward.
type PartialFailure struct {
	Action    string
	RecordID  string
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s %s: partial failure at %s after [%s]: %v",
		e.Action, e.RecordID, e.Failed, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}

// IsPartial reports whether err is a PartialFailure.
// Uses errors.As to handle wrapped errors.
func IsPartial(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
