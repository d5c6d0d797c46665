package encoder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies encode failures.
type ErrorKind int

const (
	LaunchFailed ErrorKind = iota + 1
	NonZeroExit
	Stalled
)

var (
	ErrLaunchFailed = errors.New("encoder failed to launch")
	ErrNonZeroExit  = errors.New("encoder exited with an error")
	ErrStalled      = errors.New("encoder stalled")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case NonZeroExit:
		return ErrNonZeroExit
	case Stalled:
		return ErrStalled
	default:
		return ErrLaunchFailed
	}
}

// EncodeError carries the failure kind plus the tail of ffmpeg's stderr.
type EncodeError struct {
	Kind     ErrorKind
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *EncodeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.sentinel().Error())
	if e.Kind == NonZeroExit {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Stderr) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Stderr, " | "))
	}
	return b.String()
}

func (e *EncodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
