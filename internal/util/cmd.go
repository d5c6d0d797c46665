package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path string   // Binary path
	Args []string // Arguments
	Env  []string // Optional environment variables (KEY=VALUE). If nil, inherit.
	Dir  string   // Working directory; empty = inherit.

	StdoutLine    func(string) // Called for each stdout line (if non-nil)
	StderrLine    func(string) // Called for each stderr line (if non-nil)
	CaptureStdout bool         // When false, do not buffer stdout into CmdResult (still invoke StdoutLine)
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int // -1 when the process never started or was killed by a signal
	Err    error
}

// Started reports whether the process was launched at all.
func (r CmdResult) Started() bool {
	var exitErr *exec.ExitError
	return r.Err == nil || r.Code >= 0 || errors.As(r.Err, &exitErr)
}

// CmdRunner is the seam every subprocess stage goes through.
type CmdRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

// DefaultRunner executes real processes.
type DefaultRunner struct {
	Logger logrus.FieldLogger
	// WaitDelay bounds how long Wait lingers after ctx is cancelled.
	WaitDelay time.Duration
}

// NewDefaultRunner returns a runner that logs command lines at debug level.
func NewDefaultRunner(log logrus.FieldLogger) *DefaultRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DefaultRunner{Logger: log, WaitDelay: 5 * time.Second}
}

// Run executes the command and blocks until it has exited and both output
// streams are drained. When ctx is cancelled the process is killed and Run
// still waits for it, so callers never observe a live orphan.
// It always captures stderr. Stdout capture can be disabled with CaptureStdout=false.
// On non-zero exit, returns an error describing the exit code, while also
// populating CmdResult.Code and captured buffers.
func (r *DefaultRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.WaitDelay = r.WaitDelay
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdout := &lineWriter{fn: func(line string) {
		if spec.StdoutLine != nil {
			spec.StdoutLine(line)
		}
		if spec.CaptureStdout || spec.StdoutLine == nil {
			stdoutBuf.WriteString(line)
			stdoutBuf.WriteByte('\n')
		}
	}}
	stderr := &lineWriter{fn: func(line string) {
		if spec.StderrLine != nil {
			spec.StderrLine(line)
		}
		stderrBuf.WriteString(line)
		stderrBuf.WriteByte('\n')
	}}
	// exec owns the copy goroutines, so WaitDelay can close pipes held open
	// by grandchildren.
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if r.Logger != nil {
		r.Logger.WithField("cmd", ShellQuote(spec.Path, spec.Args)).Debug("exec")
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1, Err: err}, fmt.Errorf("start %s: %w", spec.Path, err)
	}
	waitErr := cmd.Wait()
	stdout.Flush()
	stderr.Flush()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}
	if waitErr != nil {
		return res, fmt.Errorf("command failed (exit %d): %w", code, waitErr)
	}
	return res, nil
}

// maxLine caps a buffered line; longer runs are emitted in pieces. It covers
// ffprobe JSON on files with many streams.
const maxLine = 1024 * 1024

// lineWriter splits written bytes into lines and hands each to fn without the
// trailing newline or carriage return. Flush emits a final unterminated line.
type lineWriter struct {
	mu  sync.Mutex
	fn  func(string)
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxLine {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(b []byte) {
	w.fn(string(bytes.TrimSuffix(b, []byte{'\r'})))
}

// TailLines returns the last n non-empty lines of b.
func TailLines(b []byte, n int) []string {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append(out, l)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ShellQuote returns a printable shell-like command string for logging.
func ShellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
