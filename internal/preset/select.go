package preset

import (
	"strconv"

	"av1conv/internal/config"
	"av1conv/internal/model"
)

// VMAF model names understood by libvmaf's built-in model loader.
const (
	ModelDefault = "vmaf_v0.6.1"
	Model4K      = "vmaf_4k_v0.6.1"
	ModelHDR     = "vmaf_v0.6.1neg"
)

// minHDRRate keeps one rate-control step below every HDR cell for DV.
const minHDRRate = 2

const dvFilter = "setparams=colorspace=bt2020nc:color_primaries=bt2020:color_trc=smpte2084"

var (
	tagsPQ  = model.ColorTags{Primaries: "bt2020", Transfer: "smpte2084", Space: "bt2020nc"}
	tagsHLG = model.ColorTags{Primaries: "bt2020", Transfer: "arib-std-b67", Space: "bt2020nc"}
)

// Select returns the encode parameters for a resolution, dynamic range and
// backend. It is total: every combination yields a spec. HDR content is
// tagged as PQ; use ForMedia to honour HLG sources.
func Select(t Table, res model.ResolutionClass, dr model.DynamicRange, kind model.EncoderKind, perf config.PerformanceConfig) model.PresetSpec {
	tuning := t.lookup(Key{res, dr})
	rc := rateControl(tuning, kind)
	switch dr {
	case model.RangeHDR:
		rc = max(rc, minHDRRate)
	case model.RangeDolbyVision:
		// DV always targets higher quality than HDR at the same resolution.
		if hdr := max(rateControl(t.lookup(Key{res, model.RangeHDR}), kind), minHDRRate); rc >= hdr {
			rc = hdr - 1
		}
	}

	spec := model.PresetSpec{
		Encoder:      kind,
		Resolution:   res,
		DynamicRange: dr,
		RateControl:  rc,
		PixelFormat:  pixelFormat(kind),
		VMAFModel:    vmafModel(res, dr),
	}
	spec.VideoFilter = "format=" + spec.PixelFormat

	switch kind {
	case model.EncoderNVENC:
		spec.RateControlFlag = "-cq"
		spec.SpeedPreset = perf.NVENCPreset
	case model.EncoderQSV:
		spec.RateControlFlag = "-global_quality"
		spec.SpeedPreset = perf.QSVPreset
	case model.EncoderAMF:
		spec.RateControlFlag = "-qp_i"
		spec.SpeedPreset = perf.AMFQuality
	default:
		spec.RateControlFlag = "-crf"
		spec.SpeedPreset = strconv.Itoa(perf.SVTPreset)
		// Grain synthesis is an SVT-AV1 feature; hardware encoders have none.
		spec.FilmGrain = tuning.FilmGrain
	}

	switch dr {
	case model.RangeHDR:
		spec.Color = tagsPQ
	case model.RangeDolbyVision:
		spec.Color = tagsPQ
		spec.VideoFilter += "," + dvFilter
	}
	return spec
}

// ForMedia classifies a probed file and selects its preset, keeping HLG
// transfer tags for HLG sources.
func ForMedia(t Table, th model.ResolutionThresholds, m model.MediaDescriptor, kind model.EncoderKind, perf config.PerformanceConfig) model.PresetSpec {
	spec := Select(t, th.Classify(m.Width, m.Height), m.DynamicRange, kind, perf)
	if m.DynamicRange == model.RangeHDR && m.Transfer == model.TransferHLG {
		spec.Color = tagsHLG
	}
	return spec
}

func pixelFormat(kind model.EncoderKind) string {
	if kind.Hardware() {
		return "p010le"
	}
	return "yuv420p10le"
}

// vmafModel picks the scoring model: HDR and DV always use the HDR-tuned
// model, SDR UHD the 4K model.
func vmafModel(res model.ResolutionClass, dr model.DynamicRange) string {
	switch {
	case dr == model.RangeHDR || dr == model.RangeDolbyVision:
		return ModelHDR
	case res == model.ResUHD:
		return Model4K
	default:
		return ModelDefault
	}
}
