package pipeline

import (
	"fmt"

	"av1conv/internal/progress"
)

// transitions lists the forward edges of the item state machine. Failed and
// Cancelled are reachable from every non-terminal state and are not listed.
var transitions = map[progress.Stage][]progress.Stage{
	progress.StageQueued:    {progress.StageProbing},
	progress.StageProbing:   {progress.StageSelecting},
	progress.StageSelecting: {progress.StageEncoding},
	progress.StageEncoding:  {progress.StageVerifying, progress.StageDone},
	progress.StageVerifying: {progress.StageDeciding},
	progress.StageDeciding:  {progress.StageDone},
}

// CanTransition reports whether an item may move from one stage to another.
func CanTransition(from, to progress.Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == progress.StageFailed || to == progress.StageCancelled {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// tracker holds one item's current stage and announces every change.
type tracker struct {
	jobID    string
	path     string
	stage    progress.Stage
	reporter progress.Reporter
}

func newTracker(jobID, path string, rp progress.Reporter) *tracker {
	return &tracker{jobID: jobID, path: path, stage: progress.StageQueued, reporter: rp}
}

func (t *tracker) to(next progress.Stage, msg string) error {
	if !CanTransition(t.stage, next) {
		return fmt.Errorf("invalid transition %s -> %s", t.stage, next)
	}
	t.stage = next
	pct := -1.0
	if next.Terminal() {
		pct = 100
	}
	t.reporter.Update(progress.Update{JobID: t.jobID, Path: t.path, Stage: next, Percent: pct, Message: msg})
	return nil
}
