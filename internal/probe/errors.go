package probe

import (
	"errors"
	"fmt"
)

// ErrorKind classifies probe failures.
type ErrorKind int

const (
	// Unreadable: ffprobe could not run or exited non-zero.
	Unreadable ErrorKind = iota + 1
	// Malformed: ffprobe ran but the report lacks the expected fields.
	Malformed
)

var (
	ErrUnreadable = errors.New("unreadable media")
	ErrMalformed  = errors.New("malformed probe report")
)

func (k ErrorKind) sentinel() error {
	if k == Malformed {
		return ErrMalformed
	}
	return ErrUnreadable
}

// ProbeError is returned by Prober.Probe. It matches ErrUnreadable or
// ErrMalformed with errors.Is.
type ProbeError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("probe %s: %v", e.Path, e.Kind.sentinel())
	}
	return fmt.Sprintf("probe %s: %v: %v", e.Path, e.Kind.sentinel(), e.Err)
}

func (e *ProbeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
