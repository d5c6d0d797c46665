// Package detect picks the AV1 encoder backend for the session.
package detect

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// Attempt records why a candidate was accepted or passed over.
type Attempt struct {
	Kind   model.EncoderKind
	OK     bool
	Reason string
}

// Detection is the immutable result of capability probing. It is computed
// once per process and copied into every consumer.
type Detection struct {
	Kind              model.EncoderKind
	Forced            bool
	Advertised        map[string]bool // AV1 encoder names listed by ffmpeg -encoders
	SoftwareAvailable bool
	Attempts          []Attempt
}

// Usable reports whether the chosen backend can actually encode. A hardware
// kind is usable only when its test encode succeeded.
func (d Detection) Usable() bool {
	if d.Kind == model.EncoderSoftware {
		return d.SoftwareAvailable
	}
	for _, a := range d.Attempts {
		if a.Kind == d.Kind {
			return a.OK
		}
	}
	return false
}

// Detector probes ffmpeg for hardware AV1 encoders.
type Detector struct {
	FFmpeg      string
	Runner      util.CmdRunner
	GOOS        string
	TestTimeout time.Duration
	Logger      logrus.FieldLogger
}

// New returns a Detector for the running platform.
func New(ffmpeg string, r util.CmdRunner, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{FFmpeg: ffmpeg, Runner: r, GOOS: runtime.GOOS, TestTimeout: 15 * time.Second, Logger: log}
}

// Detect walks the candidates in priority order and returns the first that
// is eligible on this platform, advertised by ffmpeg, and passes a one-frame
// test encode. It never fails: with no usable hardware it returns Software.
func (d *Detector) Detect(ctx context.Context) Detection {
	det := Detection{Kind: model.EncoderSoftware}
	det.Advertised = d.listEncoders(ctx)
	det.SoftwareAvailable = det.Advertised[model.EncoderSoftware.FFmpegName()]

	for _, kind := range model.EncoderPriority() {
		if !kind.Hardware() {
			break
		}
		a := d.try(ctx, kind, det.Advertised)
		det.Attempts = append(det.Attempts, a)
		d.Logger.WithFields(logrus.Fields{"encoder": kind, "ok": a.OK}).Debug("encoder probe: " + a.Reason)
		if a.OK {
			det.Kind = kind
			break
		}
	}
	det.Attempts = append(det.Attempts, Attempt{Kind: model.EncoderSoftware, OK: det.SoftwareAvailable, Reason: softwareReason(det.SoftwareAvailable)})
	d.Logger.WithField("encoder", det.Kind).Info("selected encoder")
	return det
}

// Force uses kind without falling back. A hardware kind still gets the
// platform, listing and test-encode checks so the caller can refuse an
// unusable choice before any file is touched.
func (d *Detector) Force(ctx context.Context, kind model.EncoderKind) Detection {
	adv := d.listEncoders(ctx)
	det := Detection{
		Kind:              kind,
		Forced:            true,
		Advertised:        adv,
		SoftwareAvailable: adv[model.EncoderSoftware.FFmpegName()],
	}
	if kind.Hardware() {
		det.Attempts = []Attempt{d.try(ctx, kind, adv)}
	} else {
		det.Attempts = []Attempt{{Kind: kind, OK: det.SoftwareAvailable, Reason: softwareReason(det.SoftwareAvailable)}}
	}
	d.Logger.WithFields(logrus.Fields{"encoder": kind, "ok": det.Usable()}).Info("forced encoder: " + det.Attempts[0].Reason)
	return det
}

func (d *Detector) try(ctx context.Context, kind model.EncoderKind, advertised map[string]bool) Attempt {
	a := Attempt{Kind: kind}
	switch {
	case !kind.EligibleOn(d.GOOS):
		a.Reason = "not supported on " + d.GOOS
	case !advertised[kind.FFmpegName()]:
		a.Reason = kind.FFmpegName() + " not built into ffmpeg"
	default:
		tctx, cancel := context.WithTimeout(ctx, d.TestTimeout)
		defer cancel()
		res, err := d.Runner.Run(tctx, util.CmdSpec{Path: d.FFmpeg, Args: TestEncodeArgs(kind)})
		if err != nil {
			a.Reason = "test encode failed"
			if tail := util.TailLines(res.Stderr, 1); len(tail) > 0 {
				a.Reason += ": " + tail[0]
			}
			return a
		}
		a.OK = true
		a.Reason = "test encode succeeded"
	}
	return a
}

func (d *Detector) listEncoders(ctx context.Context) map[string]bool {
	res, err := d.Runner.Run(ctx, util.CmdSpec{
		Path:          d.FFmpeg,
		Args:          []string{"-hide_banner", "-encoders"},
		CaptureStdout: true,
	})
	if err != nil {
		d.Logger.WithError(err).Warn("could not list ffmpeg encoders")
		return map[string]bool{}
	}
	return ParseEncoders(string(res.Stdout))
}

// TestEncodeArgs renders a tiny synthetic clip with the backend and discards
// the result.
func TestEncodeArgs(kind model.EncoderKind) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-frames:v", "1",
	}
	if kind == model.EncoderQSV {
		// QSV only accepts nv12/p010 system frames.
		args = append(args, "-vf", "format=nv12")
	}
	return append(args, "-c:v", kind.FFmpegName(), "-f", "null", "-")
}

// ParseEncoders extracts AV1 encoder names from `ffmpeg -encoders` output.
func ParseEncoders(out string) map[string]bool {
	found := map[string]bool{}
	inList := false
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		name := fields[1]
		if strings.Contains(name, "av1") {
			found[name] = true
		}
	}
	return found
}

func softwareReason(ok bool) string {
	if ok {
		return "libsvtav1 available"
	}
	return "libsvtav1 not built into ffmpeg"
}
