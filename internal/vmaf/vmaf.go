// Package vmaf scores an encode against its source with ffmpeg's libvmaf
// filter.
package vmaf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// Verifier runs libvmaf through ffmpeg.
type Verifier struct {
	FFmpeg    string
	Runner    util.CmdRunner
	Threads   int
	Subsample int
	// ScratchDir holds the per-run JSON logs; empty means $TMPDIR.
	ScratchDir string
	Logger     logrus.FieldLogger
}

// New returns a Verifier with libvmaf defaults of 4 threads and every 10th
// frame scored.
func New(ffmpeg string, r util.CmdRunner, log logrus.FieldLogger) *Verifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{FFmpeg: ffmpeg, Runner: r, Threads: 4, Subsample: 10, Logger: log}
}

// Filter builds the -lavfi graph. Input 0 is the encode (distorted), input 1
// the source (reference); both are normalised to 10-bit and re-based to a
// zero start time so frames pair up.
func Filter(modelName, logPath string, threads, subsample int) string {
	opts := []string{}
	if modelName != "" {
		opts = append(opts, fmt.Sprintf("model='version=%s'", modelName))
	}
	opts = append(opts,
		"log_fmt=json",
		"log_path="+escapeFilterPath(logPath),
		fmt.Sprintf("n_threads=%d", max(threads, 1)),
		fmt.Sprintf("n_subsample=%d", max(subsample, 1)),
	)
	return "[0:v:0]format=yuv420p10le,setpts=PTS-STARTPTS[dist];" +
		"[1:v:0]format=yuv420p10le,setpts=PTS-STARTPTS[ref];" +
		"[dist][ref]libvmaf=" + strings.Join(opts, ":")
}

// Args is the full ffmpeg invocation for one comparison.
func Args(original, encoded, filter string) []string {
	return []string{
		"-hide_banner", "-nostdin",
		"-i", encoded,
		"-i", original,
		"-lavfi", filter,
		"-f", "null", "-",
	}
}

// Score compares encoded against original with the named model. Errors are
// *VerifyError.
func (v *Verifier) Score(ctx context.Context, original, encoded, modelName string) (model.QualityScore, error) {
	dir, err := util.MakeTempWorkdir(v.ScratchDir, "vmaf")
	if err != nil {
		return model.QualityScore{}, &VerifyError{Kind: ScoringUnavailable, Err: err}
	}
	defer os.RemoveAll(dir)
	logPath := filepath.Join(dir, "vmaf.json")

	res, runErr := v.Runner.Run(ctx, util.CmdSpec{
		Path: v.FFmpeg,
		Args: Args(original, encoded, Filter(modelName, logPath, v.Threads, v.Subsample)),
	})
	stderr := string(res.Stderr)
	if runErr != nil {
		if strings.Contains(stderr, "No such filter: 'libvmaf'") {
			return model.QualityScore{}, &VerifyError{Kind: ScoringUnavailable, Err: errors.New("ffmpeg was built without libvmaf")}
		}
		detail := runErr
		if tail := util.TailLines(res.Stderr, 2); len(tail) > 0 {
			detail = fmt.Errorf("%w: %s", runErr, strings.Join(tail, " | "))
		}
		return model.QualityScore{}, &VerifyError{Kind: ScoringUnavailable, Err: detail}
	}

	score := model.QualityScore{Model: modelName}
	if data, err := os.ReadFile(logPath); err == nil {
		if p, err := ParseLog(data); err == nil {
			score.Mean, score.Min, score.Max = p.Mean, p.Min, p.Max
			return clamp(score), nil
		}
	}
	mean, err := ParseStderr(stderr)
	if err != nil {
		return model.QualityScore{}, &VerifyError{Kind: NoScoreProduced, Err: err}
	}
	v.Logger.WithField("encoded", encoded).Debug("vmaf log unreadable, using stderr summary")
	score.Mean, score.Min, score.Max = mean, mean, mean
	return clamp(score), nil
}

func clamp(s model.QualityScore) model.QualityScore {
	c := func(f float64) float64 { return min(max(f, 0), 100) }
	s.Mean, s.Min, s.Max = c(s.Mean), c(s.Min), c(s.Max)
	return s
}

// escapeFilterPath quotes characters that are special inside a filtergraph
// option value.
func escapeFilterPath(p string) string {
	r := strings.NewReplacer(`\`, `\\\\`, `:`, `\\:`, `'`, `\\\'`)
	return r.Replace(filepath.ToSlash(p))
}
