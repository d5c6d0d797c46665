package ui

import (
	"av1conv/internal/model"
	"av1conv/internal/progress"
)

type jobUpdateMsg struct {
	U progress.Update
}

type jobLogMsg struct {
	L progress.Log
}

type jobResultMsg struct {
	R progress.Result
}

type runDoneMsg struct {
	Summary model.RunSummary
}
