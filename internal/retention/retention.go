// Package retention decides whether a source file may be deleted after a
// successful encode, and performs that deletion.
package retention

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"av1conv/internal/model"
)

// Decide returns Delete only when a score exists and its mean meets the
// threshold. A missing score always retains the source.
func Decide(score *model.QualityScore, threshold float64) model.Decision {
	if score == nil {
		return model.Retain
	}
	if score.Mean >= threshold {
		return model.Delete
	}
	return model.Retain
}

// PolicyViolation is returned when Apply is asked to delete a source whose
// score does not justify it.
type PolicyViolation struct {
	Source    string
	Score     *model.QualityScore
	Threshold float64
}

func (e *PolicyViolation) Error() string {
	if e.Score == nil {
		return fmt.Sprintf("refusing to delete %s: no quality score", e.Source)
	}
	return fmt.Sprintf("refusing to delete %s: score %.2f below threshold %.2f", e.Source, e.Score.Mean, e.Threshold)
}

// Remover deletes sources. Remove is swappable for tests.
type Remover struct {
	Remove func(string) error
	Logger logrus.FieldLogger
}

func NewRemover(log logrus.FieldLogger) *Remover {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Remover{Remove: os.Remove, Logger: log}
}

// Apply carries out decision for source. Retain is a no-op. Delete is
// re-checked against score and threshold before anything is removed.
func (r *Remover) Apply(decision model.Decision, score *model.QualityScore, threshold float64, source string) error {
	if decision != model.Delete {
		return nil
	}
	if Decide(score, threshold) != model.Delete {
		return &PolicyViolation{Source: source, Score: score, Threshold: threshold}
	}
	if err := r.Remove(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.Logger.WithField("path", source).Warn("source already gone")
			return nil
		}
		return fmt.Errorf("delete source: %w", err)
	}
	r.Logger.WithFields(logrus.Fields{"path": source, "vmaf": score.Mean}).Info("deleted source")
	return nil
}
