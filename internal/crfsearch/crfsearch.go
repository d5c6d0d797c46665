// Package crfsearch asks ab-av1 for the rate-control value that just meets
// the VMAF threshold for one source, so the preset table becomes a fallback
// rather than the only source of truth.
package crfsearch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// Result is the value ab-av1 settled on.
type Result struct {
	CRF           int
	PredictedVMAF float64 // 0 when ab-av1 did not print one
}

// Searcher runs `ab-av1 crf-search`.
type Searcher struct {
	Binary string
	Runner util.CmdRunner
	Logger logrus.FieldLogger
}

func New(binary string, r util.CmdRunner, log logrus.FieldLogger) *Searcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Searcher{Binary: binary, Runner: r, Logger: log}
}

// Args builds the crf-search invocation. The speed preset is passed through
// so the sample encodes match the real one; ab-av1 maps its --crf to the
// backend's own quality option.
func Args(input string, spec model.PresetSpec, minVMAF float64) []string {
	args := []string{
		"crf-search",
		"--input", input,
		"--encoder", spec.Encoder.FFmpegName(),
		"--min-vmaf", strconv.FormatFloat(minVMAF, 'f', -1, 64),
	}
	if spec.SpeedPreset != "" {
		args = append(args, "--preset", spec.SpeedPreset)
	}
	if spec.Encoder == model.EncoderSoftware && spec.PixelFormat != "" {
		args = append(args, "--pix-format", spec.PixelFormat)
	}
	return args
}

// Search runs ab-av1 against input. A cancelled ctx is returned as-is so
// callers can tell it apart from a failed search.
func (s *Searcher) Search(ctx context.Context, input string, spec model.PresetSpec, minVMAF float64) (Result, error) {
	log := s.Logger.WithFields(logrus.Fields{"path": input, "min_vmaf": minVMAF})
	log.Debug("crf search started")
	res, err := s.Runner.Run(ctx, util.CmdSpec{
		Path:          s.Binary,
		Args:          Args(input, spec, minVMAF),
		CaptureStdout: true,
	})
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		if tail := util.TailLines(res.Stderr, 2); len(tail) > 0 {
			return Result{}, fmt.Errorf("ab-av1: %w: %s", err, strings.Join(tail, " | "))
		}
		return Result{}, fmt.Errorf("ab-av1: %w", err)
	}
	r, err := Parse(string(res.Stdout))
	if err != nil {
		return Result{}, err
	}
	log.WithFields(logrus.Fields{"crf": r.CRF, "vmaf": r.PredictedVMAF}).Info("crf search finished")
	return r, nil
}

var (
	crfRe  = regexp.MustCompile(`crf\s+(\d+)`)
	vmafRe = regexp.MustCompile(`VMAF\s+([\d.]+)`)
)

// ErrNoResult is returned when the output carries no crf value.
var ErrNoResult = errors.New("ab-av1 printed no crf")

// Parse reads the result line, e.g.
// "crf 28 VMAF 95.12 predicted video stream size 1.10 GiB (38%) taking 45 minutes".
// The last line mentioning a crf wins.
func Parse(out string) (Result, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		m := crfRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		crf, err := strconv.Atoi(m[1])
		if err != nil {
			return Result{}, fmt.Errorf("ab-av1 crf %q: %w", m[1], err)
		}
		r := Result{CRF: crf}
		if v := vmafRe.FindStringSubmatch(lines[i]); v != nil {
			r.PredictedVMAF, _ = strconv.ParseFloat(v[1], 64)
		}
		return r, nil
	}
	return Result{}, ErrNoResult
}
