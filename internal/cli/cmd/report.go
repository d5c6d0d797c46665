package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"av1conv/internal/model"
	"av1conv/internal/progress"
	"av1conv/internal/util/format"
	"av1conv/internal/vmaf"
)

// textReporter prints one line per finished file and coarse encode progress
// for non-interactive output.
type textReporter struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	finished int
	lastStep map[string]int
}

func newTextReporter(w io.Writer, total int) *textReporter {
	return &textReporter{w: w, total: total, lastStep: map[string]int{}}
}

func (r *textReporter) Update(u progress.Update) {
	if u.Stage != progress.StageEncoding || u.Percent < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// every 10%
	step := int(u.Percent) / 10
	if last, ok := r.lastStep[u.JobID]; ok && step <= last {
		return
	}
	r.lastStep[u.JobID] = step
	line := fmt.Sprintf("  %s %3d%%", filepath.Base(u.Path), step*10)
	if u.Speed != nil {
		line += " " + *u.Speed
	}
	if u.ETA != nil {
		line += " ETA " + format.Duration(*u.ETA)
	}
	fmt.Fprintln(r.w, line)
}

func (r *textReporter) Log(progress.Log) {}

func (r *textReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	delete(r.lastStep, res.JobID)
	fmt.Fprintf(r.w, "[%d/%d] %s %s: %s\n", r.finished, r.total, mark(res.Outcome.Kind), filepath.Base(res.Path), describe(res.Outcome, res.Score, res.Decision))
}

func mark(k model.OutcomeKind) string {
	switch k {
	case model.OutcomeCompleted:
		return "✓"
	case model.OutcomeSkipped:
		return "-"
	case model.OutcomeCancelled:
		return "!"
	default:
		return "✗"
	}
}

func describe(o model.Outcome, score *model.QualityScore, d model.Decision) string {
	if o.Kind != model.OutcomeCompleted {
		return o.String()
	}
	s := fmt.Sprintf("%s -> %s (%s)", format.HumanizeBytes(o.SizeBefore), format.HumanizeBytes(o.SizeAfter), format.SizeChange(o.SizeBefore, o.SizeAfter))
	if score != nil {
		s += fmt.Sprintf(", VMAF %.2f %s", score.Mean, vmaf.Grade(score.Mean))
	} else {
		s += ", no VMAF score"
	}
	if d == model.Delete {
		s += ", source deleted"
	} else {
		s += ", source kept"
	}
	return s
}

func printSummary(w io.Writer, s model.RunSummary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Encoder:    %s\n", s.Encoder.DisplayName())
	fmt.Fprintf(w, "Elapsed:    %s\n", format.Duration(s.FinishedAt.Sub(s.StartedAt)))
	fmt.Fprintf(w, "Converted:  %d\n", s.Converted)
	fmt.Fprintf(w, "Skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "Failed:     %d\n", s.Failed)
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "Cancelled:  %d\n", s.Cancelled)
	}
	fmt.Fprintf(w, "Deleted:    %d\n", s.Deleted)
	fmt.Fprintf(w, "Saved:      %s\n", format.HumanizeBytes(s.BytesSaved))
	for _, it := range s.Items {
		if it.Outcome.Kind == model.OutcomeFailed {
			fmt.Fprintf(w, "  ✗ %s: %s\n", it.Job.SourcePath, it.Outcome.String())
		}
		if it.DeleteErr != "" {
			fmt.Fprintf(w, "  ! %s: %s\n", it.Job.SourcePath, it.DeleteErr)
		}
	}
}
