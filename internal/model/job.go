package model

import (
	"fmt"
	"time"
)

// TrackSelection is the set of streams carried into the output, as
// type-relative indices. The primary video stream is always mapped.
type TrackSelection struct {
	Video     int
	Audio     []int
	Subtitles []int
}

// MapArgs returns the ffmpeg -map arguments, video first.
func (s TrackSelection) MapArgs() []string {
	args := []string{"-map", fmt.Sprintf("0:v:%d", s.Video)}
	for _, i := range s.Audio {
		args = append(args, "-map", fmt.Sprintf("0:a:%d", i))
	}
	for _, i := range s.Subtitles {
		args = append(args, "-map", fmt.Sprintf("0:s:%d", i))
	}
	return args
}

// TrackChoice is an explicit selection by type-relative index. A nil slice
// leaves that track type to the language preferences; an empty one selects
// no tracks of that type.
type TrackChoice struct {
	Audio     []int
	Subtitles []int
}

// JobItem is one file moving through the pipeline.
type JobItem struct {
	ID         string
	SourcePath string
	Choice     *TrackChoice // explicit tracks from the queue entry, if any
	Media      MediaDescriptor
	Tracks     TrackSelection
	OutputPath string
}

// Phase names the pipeline stage an item failed in.
type Phase string

const (
	PhaseProbe    Phase = "probe"
	PhaseSelect   Phase = "select"
	PhaseEncode   Phase = "encode"
	PhaseValidate Phase = "validate"
	PhaseVerify   Phase = "verify"
	PhaseRetain   Phase = "retain"
)

// SkipReason explains a Skipped outcome.
type SkipReason string

const (
	SkipAlreadyAV1  SkipReason = "already-AV1"
	SkipProbeFailed SkipReason = "probe-failed"
)

// OutcomeKind tags an Outcome variant.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the terminal result of encoding one item. Only the fields of the
// variant named by Kind are meaningful.
type Outcome struct {
	Kind OutcomeKind

	// Completed
	OutputPath string
	SizeBefore int64
	SizeAfter  int64

	// Skipped
	Reason SkipReason

	// Failed
	Stage  Phase
	Detail string
	Err    error
}

func Completed(output string, before, after int64) Outcome {
	return Outcome{Kind: OutcomeCompleted, OutputPath: output, SizeBefore: before, SizeAfter: after}
}

func Skipped(reason SkipReason) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// Failed builds a Failed outcome; detail defaults to err's message.
func Failed(stage Phase, err error, detail string) Outcome {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return Outcome{Kind: OutcomeFailed, Stage: stage, Detail: detail, Err: err}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// BytesSaved is the size reduction of a Completed outcome, never negative.
func (o Outcome) BytesSaved() int64 {
	if o.Kind != OutcomeCompleted || o.SizeAfter >= o.SizeBefore {
		return 0
	}
	return o.SizeBefore - o.SizeAfter
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSkipped:
		return fmt.Sprintf("skipped (%s)", o.Reason)
	case OutcomeFailed:
		return fmt.Sprintf("failed at %s: %s", o.Stage, o.Detail)
	default:
		return string(o.Kind)
	}
}

// QualityScore is a pooled VMAF result on the 0..100 scale.
type QualityScore struct {
	Mean  float64
	Min   float64
	Max   float64
	Model string
}

// Decision is the retention verdict for a source file.
type Decision string

const (
	Retain Decision = "retain"
	Delete Decision = "delete"
)

// ItemResult is one entry of the run summary.
type ItemResult struct {
	Job       JobItem
	Outcome   Outcome
	Score     *QualityScore
	Decision  Decision
	DeleteErr string
	Elapsed   time.Duration
}

// RunSummary aggregates every item of a batch, in queue order.
type RunSummary struct {
	ID         string
	Encoder    EncoderKind
	StartedAt  time.Time
	FinishedAt time.Time
	Items      []ItemResult

	Converted  int
	Skipped    int
	Failed     int
	Cancelled  int
	Deleted    int
	BytesSaved int64
}

// Tally recomputes the aggregate counters from Items.
func (s *RunSummary) Tally() {
	s.Converted, s.Skipped, s.Failed, s.Cancelled, s.Deleted, s.BytesSaved = 0, 0, 0, 0, 0, 0
	for _, it := range s.Items {
		switch it.Outcome.Kind {
		case OutcomeCompleted:
			s.Converted++
			s.BytesSaved += it.Outcome.BytesSaved()
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		case OutcomeCancelled:
			s.Cancelled++
		}
		if it.Decision == Delete && it.DeleteErr == "" {
			s.Deleted++
		}
	}
}
