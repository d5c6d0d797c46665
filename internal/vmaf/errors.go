package vmaf

import (
	"errors"
	"fmt"
)

// ErrorKind classifies verification failures.
type ErrorKind int

const (
	ScoringUnavailable ErrorKind = iota + 1
	NoScoreProduced
)

var (
	ErrScoringUnavailable = errors.New("quality scoring unavailable")
	ErrNoScoreProduced    = errors.New("quality scoring produced no score")
)

func (k ErrorKind) sentinel() error {
	if k == NoScoreProduced {
		return ErrNoScoreProduced
	}
	return ErrScoringUnavailable
}

// VerifyError is returned by Verifier.Score.
type VerifyError struct {
	Kind ErrorKind
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind.sentinel(), e.Err)
}

func (e *VerifyError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
