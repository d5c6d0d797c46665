package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"av1conv/internal/model"
)

var nvencPresetRe = regexp.MustCompile(`^p[1-7]$`)

var (
	validContainers = map[string]bool{"mkv": true, "mp4": true, "webm": true}
	validQSVPresets = map[string]bool{
		"veryfast": true, "faster": true, "fast": true, "medium": true,
		"slow": true, "slower": true, "veryslow": true,
	}
	validAMFQuality = map[string]bool{"speed": true, "balanced": true, "quality": true}
)

// Validate checks ranges and cross-field constraints. All problems are
// reported together.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Encoder != "auto" {
		if _, err := model.ParseEncoderKind(c.Encoder); err != nil {
			add("encoder: %v (valid: auto|nvenc|qsv|amf|svt)", err)
		}
	}

	q := c.Quality
	if q.VMAFThreshold < 0 || q.VMAFThreshold > 100 {
		add("quality.vmaf_threshold must be between 0 and 100, got %g", q.VMAFThreshold)
	}
	if q.VMAFThreads < 1 {
		add("quality.vmaf_threads must be at least 1")
	}
	if q.VMAFSubsample < 1 {
		add("quality.vmaf_subsample must be at least 1")
	}

	p := c.Performance
	if p.SVTPreset < 0 || p.SVTPreset > 13 {
		add("performance.svt_preset must be between 0 and 13, got %d", p.SVTPreset)
	}
	if !nvencPresetRe.MatchString(p.NVENCPreset) {
		add("performance.nvenc_preset must be p1..p7, got %q", p.NVENCPreset)
	}
	if !validQSVPresets[p.QSVPreset] {
		add("performance.qsv_preset %q is not a QSV preset", p.QSVPreset)
	}
	if !validAMFQuality[p.AMFQuality] {
		add("performance.amf_quality must be speed|balanced|quality, got %q", p.AMFQuality)
	}

	o := c.Output
	if !validContainers[o.Container] {
		add("output.container must be mkv|mp4|webm, got %q", o.Container)
	}
	if !o.SameDirectory && o.OutputDirectory == "" {
		add("output.output_directory is required when output.same_directory is false")
	}

	errs = append(errs, c.Presets.validate()...)

	r := c.Resolution
	if r.HDMinWidth <= 0 || r.HDMinHeight <= 0 {
		add("resolution thresholds must be positive")
	} else if !(r.HDMinWidth < r.FHDMinWidth && r.FHDMinWidth < r.UHDMinWidth) ||
		!(r.HDMinHeight < r.FHDMinHeight && r.FHDMinHeight < r.UHDMinHeight) {
		add("resolution thresholds must increase from hd to fhd to uhd")
	}

	run := c.Run
	if run.Jobs < 1 || run.Jobs > 8 {
		add("run.jobs must be between 1 and 8, got %d", run.Jobs)
	}
	if run.StallTimeout < 0 {
		add("run.stall_timeout must not be negative")
	}
	if run.PollInterval <= 0 {
		add("run.poll_interval must be positive")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

func (t Tuning) validate(name string) []error {
	var errs []error
	check := func(field string, v, lo, hi int) {
		if v < lo || v > hi {
			errs = append(errs, fmt.Errorf("presets.%s.%s must be between %d and %d, got %d", name, field, lo, hi, v))
		}
	}
	check("crf", t.CRF, 1, 63)
	check("film_grain", t.FilmGrain, 0, 50)
	// zero hardware values fall back to crf
	check("nvenc_cq", t.NVENCCQ, 0, 51)
	check("qsv_quality", t.QSVQuality, 0, 51)
	check("amf_quality", t.AMFQuality, 0, 51)
	return errs
}

func (p PresetsConfig) validate() []error {
	var errs []error
	for name, t := range map[string]Tuning{
		"sd": p.SD, "hd": p.HD,
		"full_hd": p.FullHD, "full_hd_hdr": p.FullHDHDR, "full_hd_dv": p.FullHDDV,
		"uhd": p.UHD, "uhd_hdr": p.UHDHDR, "uhd_dv": p.UHDDV,
	} {
		errs = append(errs, t.validate(name)...)
	}
	// SD and HD derive their DV cells by lowering the tier, which needs room
	// below it.
	for name, t := range map[string]Tuning{"sd": p.SD, "hd": p.HD} {
		for _, f := range []struct {
			field string
			v     int
		}{{"crf", t.CRF}, {"nvenc_cq", t.NVENCCQ}, {"qsv_quality", t.QSVQuality}, {"amf_quality", t.AMFQuality}} {
			if f.v == 1 {
				errs = append(errs, fmt.Errorf("presets.%s.%s must be at least 2 so Dolby Vision can target a lower value", name, f.field))
			}
		}
	}
	// Dolby Vision must target higher quality than HDR at every resolution.
	for _, pair := range []struct {
		name    string
		hdr, dv Tuning
	}{{"full_hd", p.FullHDHDR, p.FullHDDV}, {"uhd", p.UHDHDR, p.UHDDV}} {
		if pair.dv.CRF >= pair.hdr.CRF {
			errs = append(errs, fmt.Errorf("presets.%s_dv.crf (%d) must be lower than presets.%s_hdr.crf (%d)",
				pair.name, pair.dv.CRF, pair.name, pair.hdr.CRF))
		}
		for _, hw := range []struct {
			field   string
			hdr, dv int
		}{
			{"nvenc_cq", pair.hdr.NVENCCQ, pair.dv.NVENCCQ},
			{"qsv_quality", pair.hdr.QSVQuality, pair.dv.QSVQuality},
			{"amf_quality", pair.hdr.AMFQuality, pair.dv.AMFQuality},
		} {
			if hw.dv != 0 && hw.hdr != 0 && hw.dv >= hw.hdr {
				errs = append(errs, fmt.Errorf("presets.%s_dv.%s (%d) must be lower than presets.%s_hdr.%s (%d)",
					pair.name, hw.field, hw.dv, pair.name, hw.field, hw.hdr))
			}
		}
	}
	return errs
}
