// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"errors"
	"fmt"
)

// Stage names a failure point of a resolve run.
type Stage string

const (
	StagePage    Stage = "page-fetch"
	StageContent Stage = "content"
	StagePayload Stage = "payload"
	StageScript  Stage = "script"
	StageAPI     Stage = "api"
	StageJSON    Stage = "json"
	StageShape   Stage = "shape"
	StageMap     Stage = "map"
	StageFSM     Stage = "fsm"
)

// Failure kinds; every StageError matches exactly one via errors.Is.
var (
	ErrTransport  = errors.New("kodik: transport failure")
	ErrContent    = errors.New("kodik: content failure")
	ErrValidation = errors.New("kodik: validation failure")
)

// StageError describes why a run ended without sources. It never escapes Resolve;
// it is logged and kept for diagnostics.
type StageError struct {
	Stage  Stage
	Reason string
	Kind   error
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("kodik %s: %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the failure kind sentinel.
func (e *StageError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

func transportErr(stage Stage, reason string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Kind: ErrTransport, Err: err}
}

func contentErr(reason string) *StageError {
	return &StageError{Stage: StageContent, Reason: reason, Kind: ErrContent}
}

func validationErr(stage Stage, reason string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Kind: ErrValidation, Err: err}
}
