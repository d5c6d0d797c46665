package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"av1conv/internal/crfsearch"
	"av1conv/internal/detect"
	"av1conv/internal/dirs"
	"av1conv/internal/encoder"
	"av1conv/internal/model"
	"av1conv/internal/pipeline"
	"av1conv/internal/probe"
	"av1conv/internal/util/deps"
	"av1conv/internal/vmaf"
)

// session holds the process-wide decisions made before any file is touched.
type session struct {
	ffmpeg    string
	ffprobe   string
	abav1     string // empty when the CRF search is off or ab-av1 is missing
	detection detect.Detection
}

// prepare resolves the binaries and the encoder backend. Failures here abort
// the whole run with ExitMissingDep.
func (a *app) prepare(ctx context.Context) (session, error) {
	var s session
	var err error
	if s.ffmpeg, err = deps.FindFFmpeg(a.cfg.Binaries.FFmpeg); err != nil {
		return s, &ExitError{Code: ExitMissingDep, Err: err}
	}
	if s.ffprobe, err = deps.FindFFprobe(a.cfg.Binaries.FFprobe); err != nil {
		return s, &ExitError{Code: ExitMissingDep, Err: err}
	}

	dctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	det := detect.New(s.ffmpeg, a.runner, a.log)
	if a.cfg.Encoder == "" || a.cfg.Encoder == "auto" {
		s.detection = det.Detect(dctx)
	} else {
		kind, err := model.ParseEncoderKind(a.cfg.Encoder)
		if err != nil {
			return s, &ExitError{Code: ExitCLIError, Err: err}
		}
		s.detection = det.Force(dctx, kind)
	}
	if ctx.Err() != nil {
		return s, &ExitError{Code: ExitCancelled, Err: ctx.Err()}
	}
	if !s.detection.Usable() {
		return s, &ExitError{Code: ExitMissingDep, Err: errors.New(noEncoderMessage(s.detection))}
	}
	a.log.WithFields(logrus.Fields{
		"encoder": s.detection.Kind,
		"forced":  s.detection.Forced,
	}).Info("encoder selected")

	if a.cfg.Quality.CRFSearch {
		if s.abav1, err = deps.FindABAV1(a.cfg.Binaries.ABAV1); err != nil {
			a.log.WithError(err).Info("crf search disabled, using preset table")
		}
	}
	return s, nil
}

func noEncoderMessage(d detect.Detection) string {
	msg := "no usable AV1 encoder"
	for _, at := range d.Attempts {
		msg += fmt.Sprintf("\n  %s: %s", at.Kind.DisplayName(), at.Reason)
	}
	return msg
}

// coordinator wires the pipeline stages for this session.
func (a *app) coordinator(s session, opts ...pipeline.Option) *pipeline.Coordinator {
	prober := probe.New(s.ffprobe, a.runner)
	enc := encoder.New(s.ffmpeg, a.runner, encoder.Options{
		StallTimeout: a.cfg.Run.StallTimeout,
		PollInterval: a.cfg.Run.PollInterval,
		Logger:       a.log,
	})
	base := []pipeline.Option{pipeline.WithLogger(a.log)}
	if a.cfg.Quality.VMAFEnabled {
		v := vmaf.New(s.ffmpeg, a.runner, a.log)
		v.Threads = a.cfg.Quality.VMAFThreads
		v.Subsample = a.cfg.Quality.VMAFSubsample
		if dir, err := dirs.ScratchDir(); err == nil {
			v.ScratchDir = dir
		}
		base = append(base, pipeline.WithScorer(v))
	}
	if s.abav1 != "" {
		base = append(base, pipeline.WithCRFSearch(crfsearch.New(s.abav1, a.runner, a.log)))
	}
	return pipeline.New(a.cfg, s.detection.Kind, prober, enc, append(base, opts...)...)
}

// queue expands the command-line paths into job items, attaching any
// explicit track choice from --audio and --subs.
func (a *app) queue(flags *pflag.FlagSet, args []string) ([]model.JobItem, error) {
	paths, err := pipeline.Discover(args, a.cfg.Run.Recursive, a.cfg.Output)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}
	if len(paths) == 0 {
		return nil, &ExitError{Code: ExitCLIError, Err: errors.New("no video files found")}
	}
	items := pipeline.BuildQueue(paths)
	if choice := trackChoice(flags); choice != nil {
		for i := range items {
			c := *choice
			items[i].Choice = &c
		}
	}
	return items, nil
}

// trackChoice reads --audio and --subs. Flags left unset yield nil slices so
// the language preferences still apply to that track type.
func trackChoice(flags *pflag.FlagSet) *model.TrackChoice {
	var c model.TrackChoice
	if f := flags.Lookup("audio"); f != nil && f.Changed {
		v, _ := flags.GetIntSlice("audio")
		c.Audio = append([]int{}, v...)
	}
	if f := flags.Lookup("subs"); f != nil && f.Changed {
		v, _ := flags.GetIntSlice("subs")
		c.Subtitles = append([]int{}, v...)
	}
	if c.Audio == nil && c.Subtitles == nil {
		return nil
	}
	return &c
}
