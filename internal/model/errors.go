package model

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when a job id is unknown to the store.
var ErrJobNotFound = errors.New("job not found")

// ValidationError rejects a malformed submission synchronously;
// no job is created when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid submission: %s", e.Reason)
	}
	return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Reason)
}

// SourceError wraps a failure fetching from one source. Transient
// failures (timeouts, 5xx responses) are retried with backoff;
// permanent failures (bad auth, malformed requests) are not.
type SourceError struct {
	URL       string
	Transient bool
	Err       error
}

func (e *SourceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("source %s: %s failure: %v", e.URL, kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// TransientSourceError builds a retryable SourceError.
func TransientSourceError(url string, err error) *SourceError {
	return &SourceError{URL: url, Transient: true, Err: err}
}

// PermanentSourceError builds a non-retryable SourceError.
func PermanentSourceError(url string, err error) *SourceError {
	return &SourceError{URL: url, Transient: false, Err: err}
}

// TransformationError marks a fatal failure evaluating the rule chain
// against a single record. It is isolated to that record and never
// aborts the batch or the job.
type TransformationError struct {
	Operation string
	Field     string
	Err       error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation %s on field %q: %v", e.Operation, e.Field, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }
