package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"av1conv/internal/model"
	"av1conv/internal/progress"
	"av1conv/internal/util/format"
	"av1conv/internal/vmaf"
)

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	runner Runner

	title      string
	jobOrder   []string
	jobs       map[string]*jobState
	cancelling bool
	summary    *model.RunSummary

	width, height int
	styles        Styles

	// Internal event channel used by reporter to feed tea messages
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, title string, items []model.JobItem, runner Runner) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	jobs := make(map[string]*jobState, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		js := newJobState(it.ID, it.SourcePath, sty)
		jobs[it.ID] = &js
		order = append(order, it.ID)
	}
	return Model{
		ctx:      c,
		cancel:   cancel,
		runner:   runner,
		title:    title,
		jobs:     jobs,
		jobOrder: order,
		styles:   sty,
		eventCh:  make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		cmds = append(cmds, m.jobs[id].spinner.Tick)
	}
	cmds = append(cmds, m.listenEventsCmd(), m.startRunCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.summary != nil {
				return m, tea.Quit
			}
			m.cancelling = true
			m.cancel()
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case jobUpdateMsg:
		u := msg.U
		if js, ok := m.jobs[u.JobID]; ok && !js.done {
			js.stage = u.Stage
			js.percent = u.Percent
			js.eta = u.ETA
			if u.Speed != nil {
				js.speed = *u.Speed
			}
			if u.Message != "" {
				js.status = u.Message
			} else {
				js.status = stageLabel(u.Stage)
			}
		}
	case jobLogMsg:
		if js, ok := m.jobs[msg.L.JobID]; ok && !js.done {
			js.status = msg.L.Line
		}

	case jobResultMsg:
		m.applyResult(msg.R)
	case runDoneMsg:
		s := msg.Summary
		m.summary = &s
		// results dropped during cancellation are recovered from the summary
		for _, it := range s.Items {
			if js, ok := m.jobs[it.Job.ID]; ok && !js.done {
				m.applyResult(progress.Result{
					JobID: it.Job.ID, Path: it.Job.SourcePath, Outcome: it.Outcome, Score: it.Score, Decision: it.Decision,
				})
			}
		}
		return m, tea.Quit
	}

	// Update per-job components (spinner)
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	// Keep listening for events
	switch msg.(type) {
	case jobUpdateMsg, jobLogMsg, jobResultMsg:
		cmds = append(cmds, m.listenEventsCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) applyResult(r progress.Result) {
	js, ok := m.jobs[r.JobID]
	if !ok {
		return
	}
	js.done = true
	js.outcome = r.Outcome
	js.score = r.Score
	js.decision = r.Decision
	js.status = resultLine(r)
	switch r.Outcome.Kind {
	case model.OutcomeFailed:
		js.stage = progress.StageFailed
		js.percent = -1
	case model.OutcomeCancelled:
		js.stage = progress.StageCancelled
		js.percent = -1
	default:
		js.stage = progress.StageDone
		js.percent = 100
	}
}

func (m Model) View() string {
	out := m.viewHeader() + "\n\n" + m.viewJobs()
	if s := m.viewSummary(); s != "" {
		out += "\n" + s
	}
	return out
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		return <-m.eventCh
	}
}

// startRunCmd runs the whole batch; its message arrives when the runner
// returns.
func (m Model) startRunCmd() tea.Cmd {
	return func() tea.Msg {
		sum := m.runner(m.ctx, teaReporter{ch: m.eventCh, done: m.ctx.Done()})
		return runDoneMsg{Summary: sum}
	}
}

func stageLabel(s progress.Stage) string {
	switch s {
	case progress.StageQueued:
		return "Queued"
	case progress.StageProbing:
		return "Probing streams"
	case progress.StageSelecting:
		return "Selecting preset and tracks"
	case progress.StageEncoding:
		return "Encoding"
	case progress.StageVerifying:
		return "Measuring VMAF"
	case progress.StageDeciding:
		return "Applying retention"
	default:
		return string(s)
	}
}

func resultLine(r progress.Result) string {
	o := r.Outcome
	switch o.Kind {
	case model.OutcomeCompleted:
		line := fmt.Sprintf("%s -> %s", format.HumanizeBytes(o.SizeBefore), format.HumanizeBytes(o.SizeAfter))
		if r.Score != nil {
			line += fmt.Sprintf(" • VMAF %.2f (%s)", r.Score.Mean, vmaf.Grade(r.Score.Mean))
		} else {
			line += " • no VMAF score"
		}
		if r.Decision == model.Delete {
			line += " • source deleted"
		} else {
			line += " • source kept"
		}
		return line
	default:
		return o.String()
	}
}

// teaReporter feeds pipeline events into the program. Progress updates are
// dropped when the channel is full; results are always delivered unless the
// batch context is gone.
type teaReporter struct {
	ch   chan tea.Msg
	done <-chan struct{}
}

func (r teaReporter) Update(u progress.Update) {
	if u.Stage.Terminal() {
		r.send(jobUpdateMsg{U: u})
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}

func (r teaReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{L: l}:
	default:
	}
}

func (r teaReporter) Result(res progress.Result) {
	r.send(jobResultMsg{R: res})
}

func (r teaReporter) send(msg tea.Msg) {
	select {
	case r.ch <- msg:
	case <-r.done:
		// the program may have stopped reading; still try without blocking
		select {
		case r.ch <- msg:
		default:
		}
	}
}
