package evaluation

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrSubjectNotFound = errors.New("subject not found")
)

// ValidationError is a caller-fixable input problem. No job is created.
type ValidationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Input, e.Reason)
}

// UpstreamFetchError is a signal collaborator failure. Fatal only when
// listing source units.
type UpstreamFetchError struct {
	Op   string
	Unit string
	Err  error
}

func (e *UpstreamFetchError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Unit, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// InferenceError means a unit yields zero skills.
type InferenceError struct {
	Unit string
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("infer skills for %s: %v", e.Unit, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const maxErrorMessage = 200

// shortMessage is what pollers see for a failed job.
func shortMessage(err error) string {
	var (
		upstream *UpstreamFetchError
		persist  *PersistenceError
	)
	msg := err.Error()
	switch {
	case errors.As(err, &upstream):
		msg = "fetching source units failed: " + upstream.Err.Error()
	case errors.As(err, &persist):
		msg = "saving results failed"
	}

	runes := []rune(msg)
	if len(runes) > maxErrorMessage {
		return string(runes[:maxErrorMessage]) + "..."
	}
	return msg
}
