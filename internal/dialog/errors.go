package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks text that does not match the shape a step expects.
	ErrInvalidInput = errors.New("dialog: invalid input")
	// ErrNotFound marks a well-formed answer that names an unknown city.
	ErrNotFound = errors.New("dialog: not found")
	// ErrDialogInProgress is returned by Start when the user already has a dialog.
	ErrDialogInProgress = errors.New("dialog: another dialog is in progress")
	// ErrNoDialog is returned by Submit when the user has no active dialog.
	ErrNoDialog = errors.New("dialog: no active dialog")
	// ErrUnknownKind is returned for a kind without a registered flow.
	ErrUnknownKind = errors.New("dialog: unknown kind")
)

// InputError is a recoverable validation failure for one step.
type InputError struct {
	Step  StepName
	Cause error // ErrInvalidInput or ErrNotFound
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: step %s", e.Cause, e.Step)
}

func (e *InputError) Unwrap() error { return e.Cause }

// Code classifies the failure for handler logs.
func (e *InputError) Code() string {
	if errors.Is(e.Cause, ErrNotFound) {
		return "NOT_FOUND"
	}
	return "INVALID_INPUT"
}

func invalid(step StepName) error  { return &InputError{Step: step, Cause: ErrInvalidInput} }
func notFound(step StepName) error { return &InputError{Step: step, Cause: ErrNotFound} }
