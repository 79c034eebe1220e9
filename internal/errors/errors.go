// Package errors re-exports github.com/cockroachdb/errors and defines the
// error classes used across the job orchestrator.
//
// Errors are classified by marking them with one of the sentinels below:
//
//	return errors.Mark(errors.Newf("start time %s is in the past", ts), errors.ErrValidation)
//
// and inspected with errors.Is. Marked errors keep their own message, so the
// text shown to a caller is the specific one, not the sentinel's.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New   = crdb.New
	Newf  = crdb.Newf
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
	Mark  = crdb.Mark
	Is    = crdb.Is
	IsAny = crdb.IsAny
	As    = crdb.As
)

var (
	// ErrValidation marks bad configuration or time input. Never retried.
	ErrValidation = New("validation error")

	// ErrInvalidTransition marks a lifecycle or job status guard violation.
	ErrInvalidTransition = New("invalid transition")

	// ErrNotFound marks an unknown job or resource id.
	ErrNotFound = New("not found")

	// ErrConflict marks a second active job for a resource.
	ErrConflict = New("conflict")

	// ErrRateLimited marks a rejected submission burst.
	ErrRateLimited = New("rate limit exceeded")

	// ErrTransientNetwork marks a retryable polling I/O failure.
	ErrTransientNetwork = New("transient network error")

	// ErrGenerationFailure marks a terminal failure of the background work.
	ErrGenerationFailure = New("generation failure")

	// ErrTimeout marks an exhausted poll budget. The job may still finish.
	ErrTimeout = New("timed out")

	// ErrSubmissionInFlight is returned when a submission is already outstanding.
	ErrSubmissionInFlight = New("submission already in flight")
)

func Validationf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrValidation)
}

func InvalidTransitionf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidTransition)
}

func NotFoundf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

func Conflictf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConflict)
}

func GenerationFailuref(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrGenerationFailure)
}

// Code returns the wire code for err, "internal" when err carries no class.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrValidation):
		return CodeValidation
	case Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case Is(err, ErrNotFound):
		return CodeNotFound
	case Is(err, ErrConflict):
		return CodeConflict
	case Is(err, ErrRateLimited):
		return CodeRateLimited
	case Is(err, ErrGenerationFailure):
		return CodeGenerationFailure
	case Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// FromCode rebuilds a classified error from a wire code and message.
func FromCode(code, message string) error {
	err := New(message)
	switch code {
	case CodeValidation:
		return Mark(err, ErrValidation)
	case CodeInvalidTransition:
		return Mark(err, ErrInvalidTransition)
	case CodeNotFound:
		return Mark(err, ErrNotFound)
	case CodeConflict:
		return Mark(err, ErrConflict)
	case CodeRateLimited:
		return Mark(err, ErrRateLimited)
	case CodeGenerationFailure:
		return Mark(err, ErrGenerationFailure)
	case CodeTimeout:
		return Mark(err, ErrTimeout)
	default:
		return err
	}
}

// Wire codes.
const (
	CodeValidation        = "validation_error"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeRateLimited       = "rate_limited"
	CodeGenerationFailure = "generation_failure"
	CodeTimeout           = "timeout"
	CodeInternal          = "internal"
)
