package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"av1conv/internal/model"
	"av1conv/internal/progress"
	"av1conv/internal/util/format"
)

func (m Model) viewHeader() string {
	done, total := 0, len(m.jobOrder)
	for _, id := range m.jobOrder {
		if m.jobs[id].done {
			done++
		}
	}
	title := m.styles.Title.Render(m.title)
	hint := "q: cancel"
	if m.cancelling {
		hint = m.styles.Warning.Render("cancelling, waiting for ffmpeg to exit")
	}
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Files: %d/%d done • ", done, total)) + hint
	return title + "\n" + sub
}

func (m Model) viewJobs() string {
	var b strings.Builder
	for _, id := range m.jobOrder {
		b.WriteString(m.viewJob(m.jobs[id]))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewJob(js *jobState) string {
	stageStyle := m.styles.JobInfo
	switch js.stage {
	case progress.StageProbing, progress.StageSelecting:
		stageStyle = m.styles.StageProbe
	case progress.StageEncoding:
		stageStyle = m.styles.StageEnc
	case progress.StageVerifying, progress.StageDeciding:
		stageStyle = m.styles.StageVerify
	case progress.StageDone:
		stageStyle = m.styles.Success
	case progress.StageFailed:
		stageStyle = m.styles.Error
	case progress.StageCancelled:
		stageStyle = m.styles.Warning
	}

	left := m.styles.JobTitle.Render(truncate(filepath.Base(js.path), 48))
	stage := stageStyle.Render(string(js.stage))

	var right string
	switch {
	case js.done && js.outcome.Kind == model.OutcomeFailed:
		right = m.styles.Error.Render("✗ failed")
	case js.done && js.outcome.Kind == model.OutcomeCancelled:
		right = m.styles.Warning.Render("- cancelled")
	case js.done:
		right = m.styles.Success.Render("✓ done")
	case js.stage == progress.StageEncoding && js.percent >= 0 && js.percent <= 100:
		right = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
		if js.speed != "" {
			right += " " + m.styles.Faint.Render(js.speed)
		}
		if js.eta != nil {
			right += " " + m.styles.Faint.Render("ETA "+format.Duration(*js.eta))
		}
	default:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("waiting")
	}

	line1 := fmt.Sprintf("%s  %s", left, stage)
	line2 := m.styles.JobInfo.Render(js.status)
	return m.styles.Box.Render(line1 + "\n" + right + "\n" + line2)
}

func (m Model) viewSummary() string {
	if m.summary == nil {
		return ""
	}
	s := m.summary
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Summary"))
	b.WriteString("\n")
	b.WriteString(m.styles.Success.Render(fmt.Sprintf("  converted %d • deleted %d • saved %s", s.Converted, s.Deleted, format.HumanizeBytes(s.BytesSaved))))
	b.WriteString("\n")
	if s.Skipped > 0 {
		b.WriteString(m.styles.Faint.Render(fmt.Sprintf("  skipped %d", s.Skipped)))
		b.WriteString("\n")
	}
	if s.Failed > 0 {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("  failed %d", s.Failed)))
		b.WriteString("\n")
	}
	if s.Cancelled > 0 {
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf("  cancelled %d", s.Cancelled)))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
