// Package probe runs ffprobe against source files and turns its JSON report
// into a model.MediaDescriptor.
package probe

import (
	"context"
	"strings"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// Prober wraps an ffprobe binary.
type Prober struct {
	FFprobe string
	Runner  util.CmdRunner
}

// New returns a Prober for the given ffprobe path.
func New(ffprobe string, r util.CmdRunner) *Prober {
	return &Prober{FFprobe: ffprobe, Runner: r}
}

// Args is the ffprobe invocation for path.
func Args(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}
}

// Probe inspects path. Errors are *ProbeError.
func (p *Prober) Probe(ctx context.Context, path string) (model.MediaDescriptor, error) {
	res, err := p.Runner.Run(ctx, util.CmdSpec{
		Path:          p.FFprobe,
		Args:          Args(path),
		CaptureStdout: true,
	})
	if err != nil {
		if tail := util.TailLines(res.Stderr, 1); len(tail) > 0 {
			err = &detailError{msg: strings.Join(tail, " "), err: err}
		}
		return model.MediaDescriptor{}, &ProbeError{Kind: Unreadable, Path: path, Err: err}
	}
	d, err := ParseJSON(res.Stdout)
	if err != nil {
		return model.MediaDescriptor{}, &ProbeError{Kind: Malformed, Path: path, Err: err}
	}
	d.Path = path
	if d.SizeBytes == 0 {
		if n, err := util.FileSize(path); err == nil {
			d.SizeBytes = n
		}
	}
	return d, nil
}

type detailError struct {
	msg string
	err error
}

func (e *detailError) Error() string { return e.msg }
func (e *detailError) Unwrap() error { return e.err }
