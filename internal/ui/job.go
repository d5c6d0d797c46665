package ui

import (
	"time"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"av1conv/internal/model"
	"av1conv/internal/progress"
)

type jobState struct {
	id     string
	path   string
	stage  progress.Stage
	status string
	done   bool

	percent float64 // -1 means unknown
	eta     *time.Duration
	speed   string

	outcome  model.Outcome
	score    *model.QualityScore
	decision model.Decision

	spinner spinner.Model
	bar     bubblesprogress.Model
}

func newJobState(id, path string, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		id:      id,
		path:    path,
		stage:   progress.StageQueued,
		status:  "Queued",
		percent: -1,
		spinner: sp,
		bar:     bar,
	}
}
