// Package pipeline drives a batch of source files through probe, preset
// selection, encode, quality verification and retention.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"av1conv/internal/config"
	"av1conv/internal/crfsearch"
	"av1conv/internal/encoder"
	"av1conv/internal/model"
	"av1conv/internal/preset"
	"av1conv/internal/progress"
	"av1conv/internal/retention"
	"av1conv/internal/tracks"
	"av1conv/internal/util"
	"av1conv/internal/util/disk"
	"av1conv/internal/util/format"
	"av1conv/internal/util/media"
)

// Prober reads stream metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (model.MediaDescriptor, error)
}

// Transcoder performs one encode. It reports every failure in the outcome.
type Transcoder interface {
	Encode(ctx context.Context, job model.JobItem, spec model.PresetSpec, sink encoder.ProgressSink) model.Outcome
}

// Scorer measures perceptual quality of an encode against its source.
type Scorer interface {
	Score(ctx context.Context, original, encoded, modelName string) (model.QualityScore, error)
}

// CRFSearcher picks a per-file rate-control value for spec that meets
// minVMAF. It returns ctx.Err() when cancelled.
type CRFSearcher interface {
	Search(ctx context.Context, input string, spec model.PresetSpec, minVMAF float64) (crfsearch.Result, error)
}

// Retainer carries out a retention decision.
type Retainer interface {
	Apply(decision model.Decision, score *model.QualityScore, threshold float64, source string) error
}

// ItemObserver is notified of every finished item (metrics).
type ItemObserver interface {
	ObserveItem(model.ItemResult)
}

// SpaceChecker reports whether dir can hold need more bytes.
type SpaceChecker func(dir string, need int64) (bool, uint64, error)

// Coordinator orchestrates a batch run. The encoder kind is fixed for the
// whole session.
type Coordinator struct {
	cfg     config.Config
	kind    model.EncoderKind
	table   preset.Table
	prober  Prober
	encoder Transcoder

	scorer   Scorer
	searcher CRFSearcher
	remover  Retainer
	reporter progress.Reporter
	observer ItemObserver
	log      logrus.FieldLogger
	hasRoom  SpaceChecker
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScorer sets the quality verifier. Without one no item is scored and
// every source is retained.
func WithScorer(s Scorer) Option {
	return func(c *Coordinator) {
		c.scorer = s
	}
}

// WithCRFSearch enables the per-file rate-control search. Without it the
// preset table value is used as-is.
func WithCRFSearch(s CRFSearcher) Option {
	return func(c *Coordinator) {
		c.searcher = s
	}
}

// WithRemover overrides the source remover.
func WithRemover(r Retainer) Option {
	return func(c *Coordinator) {
		c.remover = r
	}
}

// WithReporter attaches a progress reporter (used by TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(c *Coordinator) {
		c.reporter = rp
	}
}

// WithObserver attaches an item observer.
func WithObserver(o ItemObserver) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithSpaceChecker replaces the disk space preflight.
func WithSpaceChecker(fn SpaceChecker) Option {
	return func(c *Coordinator) {
		c.hasRoom = fn
	}
}

// New constructs a Coordinator, applying defaults for missing components.
func New(cfg config.Config, kind model.EncoderKind, p Prober, enc Transcoder, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		kind:    kind,
		table:   preset.NewTable(cfg.Presets),
		prober:  p,
		encoder: enc,
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.reporter == nil {
		c.reporter = progress.Nop{}
	}
	if c.remover == nil {
		c.remover = retention.NewRemover(c.log)
	}
	if c.hasRoom == nil {
		c.hasRoom = disk.HasRoom
	}
	return c
}

// Run processes items with at most run.jobs in flight and returns the
// summary in queue order. Once ctx is cancelled no further item starts;
// every unstarted item is recorded as Cancelled.
func (c *Coordinator) Run(ctx context.Context, items []model.JobItem) model.RunSummary {
	sum := model.RunSummary{
		ID:        newID(),
		Encoder:   c.kind,
		StartedAt: time.Now(),
		Items:     make([]model.ItemResult, len(items)),
	}
	log := c.log.WithFields(logrus.Fields{"run": sum.ID, "encoder": c.kind})
	log.WithField("items", len(items)).Info("batch started")

	claims := c.claimOutputs(items)
	var mu sync.Mutex

	for _, job := range items {
		c.reporter.Update(progress.Update{JobID: job.ID, Path: job.SourcePath, Stage: progress.StageQueued, Percent: -1})
	}

	var g errgroup.Group
	g.SetLimit(max(c.cfg.Run.Jobs, 1))
	for i := range items {
		job := items[i]
		g.Go(func() error {
			res := c.process(ctx, job, claims[i], log)
			mu.Lock()
			sum.Items[i] = res
			mu.Unlock()
			if c.observer != nil {
				c.observer.ObserveItem(res)
			}
			c.reporter.Result(progress.Result{
				JobID:    res.Job.ID,
				Path:     res.Job.SourcePath,
				Outcome:  res.Outcome,
				Score:    res.Score,
				Decision: res.Decision,
			})
			return nil
		})
	}
	_ = g.Wait()

	sum.FinishedAt = time.Now()
	sum.Tally()
	log.WithFields(logrus.Fields{
		"converted": sum.Converted,
		"skipped":   sum.Skipped,
		"failed":    sum.Failed,
		"cancelled": sum.Cancelled,
		"saved":     format.HumanizeBytes(sum.BytesSaved),
	}).Info("batch finished")
	return sum
}

type claim struct {
	output string
	err    error
}

// claimOutputs assigns output paths in queue order; an item whose output is
// already claimed by an earlier item gets an error instead.
func (c *Coordinator) claimOutputs(items []model.JobItem) []claim {
	owners := make(map[string]string, len(items))
	claims := make([]claim, len(items))
	for i, it := range items {
		out, err := media.OutputPath(it.SourcePath, c.cfg.Output)
		if err != nil {
			claims[i] = claim{err: err}
			continue
		}
		key := filepath.Clean(out)
		if owner, ok := owners[key]; ok {
			claims[i] = claim{err: fmt.Errorf("output %s already claimed by %s", out, owner)}
			continue
		}
		owners[key] = it.SourcePath
		claims[i] = claim{output: out}
	}
	return claims
}

// searchCRF replaces spec.RateControl with the searched value. Only
// cancellation stops the item; any other failure keeps the table value.
func (c *Coordinator) searchCRF(ctx context.Context, job model.JobItem, spec *model.PresetSpec, log logrus.FieldLogger) (model.Outcome, bool) {
	c.reporter.Update(progress.Update{
		JobID:   job.ID,
		Path:    job.SourcePath,
		Stage:   progress.StageSelecting,
		Percent: -1,
		Message: "searching crf",
	})
	r, err := c.searcher.Search(ctx, job.SourcePath, *spec, c.cfg.Quality.VMAFThreshold)
	if err != nil {
		if ctx.Err() != nil {
			return model.Cancelled(), false
		}
		log.WithError(err).WithField("fallback", spec.RateControl).Warn("crf search failed, using preset table")
		c.note(job, fmt.Sprintf("crf search failed, using %s %d: %v", spec.RateControlFlag, spec.RateControl, err))
		return model.Outcome{}, true
	}
	log.WithFields(logrus.Fields{
		"table":    spec.RateControl,
		"searched": r.CRF,
		"vmaf":     r.PredictedVMAF,
	}).Info("crf search overrides preset")
	spec.RateControl = r.CRF
	return model.Outcome{}, true
}

func (c *Coordinator) process(ctx context.Context, job model.JobItem, cl claim, runLog logrus.FieldLogger) model.ItemResult {
	start := time.Now()
	log := runLog.WithFields(logrus.Fields{"job": job.ID, "path": job.SourcePath})
	tr := newTracker(job.ID, job.SourcePath, c.reporter)
	res := model.ItemResult{Job: job, Decision: model.Retain}

	advance := func(s progress.Stage, msg string) {
		if err := tr.to(s, msg); err != nil {
			log.WithError(err).Error("state machine")
		}
	}
	finish := func(o model.Outcome) model.ItemResult {
		res.Outcome = o
		res.Elapsed = time.Since(start)
		switch o.Kind {
		case model.OutcomeFailed:
			log.WithFields(logrus.Fields{"stage": o.Stage}).Error(o.Detail)
			advance(progress.StageFailed, o.String())
		case model.OutcomeCancelled:
			advance(progress.StageCancelled, "cancelled")
		default:
			advance(progress.StageDone, o.String())
		}
		return res
	}

	if ctx.Err() != nil {
		return finish(model.Cancelled())
	}

	advance(progress.StageProbing, "")
	desc, err := c.prober.Probe(ctx, job.SourcePath)
	if err != nil {
		if ctx.Err() != nil {
			return finish(model.Cancelled())
		}
		return finish(model.Failed(model.PhaseProbe, err, ""))
	}
	job.Media = desc
	res.Job = job

	advance(progress.StageSelecting, "")
	if cl.err != nil {
		return finish(model.Failed(model.PhaseSelect, cl.err, ""))
	}
	job.OutputPath = cl.output
	sel, err := tracks.Choose(desc, job.Choice, c.trackPrefs())
	if err != nil {
		return finish(model.Failed(model.PhaseSelect, err, ""))
	}
	sel, dropped := tracks.ForContainer(desc, sel, job.OutputPath)
	if len(dropped) > 0 {
		log.WithField("subtitles", dropped).Warn("bitmap subtitles cannot be stored in this container, dropped")
		c.note(job, fmt.Sprintf("dropped bitmap subtitles %v", dropped))
	}
	job.Tracks = sel
	res.Job = job
	spec := preset.ForMedia(c.table, c.cfg.Resolution, desc, c.kind, c.cfg.Performance)
	if c.searcher != nil && !desc.IsAV1() {
		if o, ok := c.searchCRF(ctx, job, &spec, log); !ok {
			return finish(o)
		}
	}
	log = log.WithFields(logrus.Fields{
		"class":  c.cfg.Resolution.Classify(desc.Width, desc.Height),
		"range":  desc.DynamicRange,
		"preset": fmt.Sprintf("%s=%d", spec.RateControlFlag, spec.RateControl),
	})

	advance(progress.StageEncoding, "")
	if !desc.IsAV1() && c.cfg.Run.CheckDiskSpace {
		if o, ok := c.preflight(job, log); !ok {
			return finish(o)
		}
	}
	out := c.encoder.Encode(ctx, job, spec, c.sink(job))
	if out.Kind != model.OutcomeCompleted {
		return finish(out)
	}
	if c.cfg.Run.ValidateOutput {
		if err := c.validate(ctx, desc, job.OutputPath); err != nil {
			_ = util.RemoveIfExists(job.OutputPath)
			if ctx.Err() != nil {
				return finish(model.Cancelled())
			}
			return finish(model.Failed(model.PhaseValidate, err, ""))
		}
	}
	res.Outcome = out

	advance(progress.StageVerifying, "")
	if c.cfg.Quality.VMAFEnabled && c.scorer != nil {
		score, err := c.scorer.Score(ctx, job.SourcePath, job.OutputPath, spec.VMAFModel)
		if err != nil {
			log.WithError(err).Warn("quality check failed, source kept")
			c.note(job, "quality check failed: "+err.Error())
		} else {
			res.Score = &score
			log.WithField("vmaf", fmt.Sprintf("%.2f", score.Mean)).Info("quality checked")
		}
	}

	advance(progress.StageDeciding, "")
	res.Decision = retention.Decide(res.Score, c.cfg.Quality.VMAFThreshold)
	if err := c.remover.Apply(res.Decision, res.Score, c.cfg.Quality.VMAFThreshold, job.SourcePath); err != nil {
		res.DeleteErr = err.Error()
		log.WithError(err).Error("source not deleted")
		c.note(job, "source not deleted: "+err.Error())
	}
	return finish(out)
}

func (c *Coordinator) preflight(job model.JobItem, log logrus.FieldLogger) (model.Outcome, bool) {
	need := job.Media.SizeBytes
	if n, err := util.FileSize(job.SourcePath); err == nil {
		need = n
	}
	ok, free, err := c.hasRoom(filepath.Dir(job.OutputPath), need)
	if err != nil {
		log.WithError(err).Warn("could not read free space, continuing")
		return model.Outcome{}, true
	}
	if !ok {
		return model.Failed(model.PhaseEncode, errInsufficientSpace,
			fmt.Sprintf("insufficient space: need %s, %s free", format.HumanizeBytes(need), format.HumanizeBytes(int64(free)))), false
	}
	return model.Outcome{}, true
}

// note surfaces a per-item warning to the reporter.
func (c *Coordinator) note(job model.JobItem, line string) {
	c.reporter.Log(progress.Log{JobID: job.ID, Stream: progress.StreamStderr, Line: line})
}

var errInsufficientSpace = errors.New("insufficient disk space")

func (c *Coordinator) sink(job model.JobItem) encoder.ProgressSink {
	return func(s encoder.Sample) {
		u := progress.Update{
			JobID:   job.ID,
			Path:    job.SourcePath,
			Stage:   progress.StageEncoding,
			Percent: s.Percent(),
			FPS:     s.FPS,
		}
		if eta, ok := s.ETA(job.Media.DurationSec); ok {
			u.ETA = &eta
		}
		if s.Speed > 0 {
			sp := fmt.Sprintf("%.2fx", s.Speed)
			u.Speed = &sp
		}
		c.reporter.Update(u)
	}
}
