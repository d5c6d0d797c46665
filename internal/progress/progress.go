package progress

import (
	"time"

	"av1conv/internal/model"
)

// Stage identifies the state of one queued item.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageProbing   Stage = "probing"
	StageSelecting Stage = "selecting"
	StageEncoding  Stage = "encoding"
	StageVerifying Stage = "verifying"
	StageDeciding  Stage = "deciding"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
	StageCancelled Stage = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed || s == StageCancelled
}

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Path    string
	Stage   Stage
	Percent float64 // 0..100, or <0 if unknown

	ETA     *time.Duration // optional
	Speed   *string        // optional, e.g. "1.2x"
	FPS     float64
	Message string // short human-friendly status line
}

// Log is a structured log line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted exactly once per job with its terminal outcome.
type Result struct {
	JobID    string
	Path     string
	Outcome  model.Outcome
	Score    *model.QualityScore
	Decision model.Decision
}

// Reporter is implemented by UI or any observer interested in progress events.
// Implementations must be safe for concurrent use when jobs > 1.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}
