package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrConditionTimeout     = errors.New("condition timeout")
	ErrActionIntercepted    = errors.New("action intercepted")
	ErrValueMismatch        = errors.New("value verification mismatch")
	ErrContextSwitch        = errors.New("context switch failure")
	ErrUnexpected           = errors.New("unexpected runtime failure")

	ErrElementNotFound = errors.New("element not found")
	ErrPipelineSpent   = errors.New("pipeline already ran")
)

// MissingConfigError lists every required setting absent at pre-flight.
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required settings: %s", strings.Join(e.Keys, ", "))
}

func (e *MissingConfigError) Is(target error) bool { return target == ErrConfigurationMissing }

// TimeoutError carries the condition that never held.
type TimeoutError struct {
	Condition Condition
	Timeout   time.Duration
	Last      error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %s", e.Timeout, e.Condition)
	if e.Last != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.Last)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrConditionTimeout }

// MismatchError reports a field whose committed value differs from the intended one.
type MismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("field %s: committed %d characters, wanted %d", e.Field, len([]rune(e.Got)), len([]rune(e.Want)))
}

func (e *MismatchError) Is(target error) bool { return target == ErrValueMismatch }

type ContextSwitchError struct {
	Frame Locator
	Err   error
}

func (e *ContextSwitchError) Error() string {
	return fmt.Sprintf("switching into frame %s: %v", e.Frame, e.Err)
}

func (e *ContextSwitchError) Unwrap() error { return e.Err }

func (e *ContextSwitchError) Is(target error) bool { return target == ErrContextSwitch }

// Kind maps an error onto the closed set of failure kinds used in logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrContextSwitch):
		return "context_switch_failure"
	case errors.Is(err, ErrValueMismatch):
		return "value_verification_mismatch"
	case errors.Is(err, ErrActionIntercepted):
		return "action_intercepted"
	case errors.Is(err, ErrConditionTimeout):
		return "condition_timeout"
	default:
		return "unexpected_runtime_failure"
	}
}
