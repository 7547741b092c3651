package models

import (
	"errors"
	"fmt"
)

// ErrorKind names a class of pipeline failure
type ErrorKind string

const (
	KindMalformedInput      ErrorKind = "MalformedInput"
	KindNoValidIdentifiers  ErrorKind = "NoValidIdentifiers"
	KindMetricsFetchFailure ErrorKind = "MetricsFetchFailure"
	KindGenerationFailure   ErrorKind = "GenerationFailure"
)

// Sentinels usable with errors.Is against a *RunError
var (
	ErrMalformedInput      = errors.New("malformed input")
	ErrNoValidIdentifiers  = errors.New("no valid identifiers found")
	ErrMetricsFetchFailure = errors.New("metrics fetch failed")
	ErrGenerationFailure   = errors.New("report generation failed")
)

var sentinels = map[ErrorKind]error{
	KindMalformedInput:      ErrMalformedInput,
	KindNoValidIdentifiers:  ErrNoValidIdentifiers,
	KindMetricsFetchFailure: ErrMetricsFetchFailure,
	KindGenerationFailure:   ErrGenerationFailure,
}

// RunError is a classified failure raised somewhere in a run
type RunError struct {
	Kind  ErrorKind
	Stage string
	Msg   string
	Err   error
}

// NewRunError builds a RunError
func NewRunError(kind ErrorKind, stage, msg string, err error) *RunError {
	return &RunError{Kind: kind, Stage: stage, Msg: msg, Err: err}
}

func (e *RunError) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Kind, e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *RunError) Unwrap() error { return e.Err }

// Is matches the sentinel of the same kind
func (e *RunError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first RunError in the chain, or "" if none
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
