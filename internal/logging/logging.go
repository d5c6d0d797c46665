// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"av1conv/internal/config"
)

// Options override parts of the configured behaviour at startup.
type Options struct {
	// Verbose forces debug level.
	Verbose bool
	// Quiet drops console output; only the log file (if any) is written.
	// The TUI uses this so log lines do not corrupt the screen.
	Quiet bool
	// Console defaults to stderr.
	Console io.Writer
}

// New returns a configured logger and a closer for the log file. The closer is
// never nil.
func New(cfg config.LogConfig, opts Options) (*logrus.Logger, func() error, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return "", fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
			},
		})
	}
	log.SetReportCaller(level >= logrus.DebugLevel)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.Quiet {
		console = io.Discard
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closer = f.Close
		if opts.Quiet {
			log.SetOutput(f)
		} else {
			log.SetOutput(io.MultiWriter(console, f))
		}
		return log, closer, nil
	}
	log.SetOutput(console)
	return log, closer, nil
}
