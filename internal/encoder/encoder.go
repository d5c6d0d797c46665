// Package encoder runs the ffmpeg AV1 transcode for one job and reports its
// progress.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// ProgressSink receives progress samples on the caller's goroutine. It must
// return promptly.
type ProgressSink func(Sample)

// Options control ffmpeg execution.
type Options struct {
	// StallTimeout fails the encode when progress does not advance for this
	// long. Zero disables the watchdog.
	StallTimeout time.Duration
	// PollInterval bounds how long the control loop sleeps between checks.
	PollInterval time.Duration
	Logger       logrus.FieldLogger
}

// Encoder drives ffmpeg through a CmdRunner.
type Encoder struct {
	FFmpeg string
	Runner util.CmdRunner
	opts   Options
}

// New returns an Encoder. Zero options get sensible defaults.
func New(ffmpeg string, r util.CmdRunner, opts Options) *Encoder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Encoder{FFmpeg: ffmpeg, Runner: r, opts: opts}
}

var errStalled = errors.New("no progress")

type runResult struct {
	res util.CmdResult
	err error
}

// Encode transcodes job.SourcePath to job.OutputPath. It never returns an
// error: every failure is folded into the outcome, and any partial output is
// removed before Failed or Cancelled is returned.
func (e *Encoder) Encode(ctx context.Context, job model.JobItem, spec model.PresetSpec, sink ProgressSink) model.Outcome {
	if job.Media.IsAV1() {
		return model.Skipped(model.SkipAlreadyAV1)
	}
	log := e.opts.Logger.WithFields(logrus.Fields{"job": job.ID, "path": job.SourcePath, "encoder": spec.Encoder})

	if err := util.EnsureDir(filepath.Dir(job.OutputPath)); err != nil {
		return model.Failed(model.PhaseEncode, &EncodeError{Kind: LaunchFailed, Err: fmt.Errorf("ensure output dir: %w", err)}, "")
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	updates := make(chan Sample, 1)
	done := make(chan runResult, 1)
	var state ProgressState
	duration := job.Media.DurationSec

	go func() {
		res, err := e.Runner.Run(runCtx, util.CmdSpec{
			Path: e.FFmpeg,
			Args: BuildArgs(job, spec),
			StdoutLine: func(line string) {
				if s, ok := state.UpdateFromLine(line, duration); ok {
					offer(updates, s)
				}
			},
		})
		done <- runResult{res: res, err: err}
	}()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	lastAdvance := time.Now()
	lastOut := time.Duration(-1)
	var result runResult
loop:
	for {
		select {
		case s := <-updates:
			if s.OutTime > lastOut {
				lastOut = s.OutTime
				lastAdvance = time.Now()
			}
			if sink != nil {
				sink(s)
			}
		case <-ticker.C:
			if e.opts.StallTimeout > 0 && time.Since(lastAdvance) > e.opts.StallTimeout {
				log.WithField("timeout", e.opts.StallTimeout).Warn("encode stalled, terminating ffmpeg")
				cancel(errStalled)
			}
		case result = <-done:
			break loop
		}
	}

	if result.err != nil {
		if err := util.RemoveIfExists(job.OutputPath); err != nil {
			log.WithError(err).Warn("could not remove partial output")
		}
		switch {
		case ctx.Err() != nil:
			log.Info("encode cancelled")
			return model.Cancelled()
		case errors.Is(context.Cause(runCtx), errStalled):
			return model.Failed(model.PhaseEncode, &EncodeError{
				Kind: Stalled,
				Err:  fmt.Errorf("no progress for %s", e.opts.StallTimeout),
			}, "")
		case !result.res.Started():
			return model.Failed(model.PhaseEncode, &EncodeError{Kind: LaunchFailed, Err: result.err}, "")
		default:
			return model.Failed(model.PhaseEncode, &EncodeError{
				Kind:     NonZeroExit,
				ExitCode: result.res.Code,
				Stderr:   util.TailLines(result.res.Stderr, 5),
			}, "")
		}
	}

	after, err := util.FileSize(job.OutputPath)
	if err != nil || after == 0 {
		_ = util.RemoveIfExists(job.OutputPath)
		return model.Failed(model.PhaseEncode, &EncodeError{
			Kind:   NonZeroExit,
			Err:    errors.New("ffmpeg reported success but wrote no output"),
			Stderr: util.TailLines(result.res.Stderr, 5),
		}, "")
	}
	before := job.Media.SizeBytes
	if n, err := util.FileSize(job.SourcePath); err == nil {
		before = n
	}
	if sink != nil {
		sink(Sample{OutTime: time.Duration(duration * float64(time.Second)), Fraction: 1, End: true})
	}
	log.WithFields(logrus.Fields{"before": before, "after": after}).Info("encode completed")
	return model.Completed(job.OutputPath, before, after)
}

// offer delivers s without blocking, replacing any sample the control loop
// has not consumed yet.
func offer(ch chan Sample, s Sample) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
