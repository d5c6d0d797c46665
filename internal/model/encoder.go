package model

import (
	"fmt"
	"strings"
)

// EncoderKind is one of the fixed AV1 encoder backends.
type EncoderKind string

const (
	EncoderNVENC    EncoderKind = "nvenc"
	EncoderQSV      EncoderKind = "qsv"
	EncoderAMF      EncoderKind = "amf"
	EncoderSoftware EncoderKind = "svt"
)

// EncoderPriority is the detection order: hardware first, software last.
func EncoderPriority() []EncoderKind {
	return []EncoderKind{EncoderNVENC, EncoderQSV, EncoderAMF, EncoderSoftware}
}

// FFmpegName is the ffmpeg -c:v value for the backend.
func (k EncoderKind) FFmpegName() string {
	switch k {
	case EncoderNVENC:
		return "av1_nvenc"
	case EncoderQSV:
		return "av1_qsv"
	case EncoderAMF:
		return "av1_amf"
	default:
		return "libsvtav1"
	}
}

// DisplayName is a short human label.
func (k EncoderKind) DisplayName() string {
	switch k {
	case EncoderNVENC:
		return "NVIDIA NVENC"
	case EncoderQSV:
		return "Intel Quick Sync"
	case EncoderAMF:
		return "AMD AMF"
	default:
		return "SVT-AV1 (software)"
	}
}

// Hardware reports whether the backend runs on a GPU.
func (k EncoderKind) Hardware() bool {
	return k != EncoderSoftware
}

// Platforms lists the GOOS values the backend is eligible on. A nil result
// means every platform.
func (k EncoderKind) Platforms() []string {
	switch k {
	case EncoderNVENC, EncoderQSV, EncoderAMF:
		return []string{"linux", "windows"}
	default:
		return nil
	}
}

// EligibleOn reports whether the backend may be used on goos.
func (k EncoderKind) EligibleOn(goos string) bool {
	p := k.Platforms()
	if p == nil {
		return true
	}
	for _, g := range p {
		if g == goos {
			return true
		}
	}
	return false
}

// ParseEncoderKind accepts the config spelling of a backend.
func ParseEncoderKind(s string) (EncoderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nvenc", "av1_nvenc":
		return EncoderNVENC, nil
	case "qsv", "av1_qsv":
		return EncoderQSV, nil
	case "amf", "av1_amf":
		return EncoderAMF, nil
	case "svt", "software", "libsvtav1":
		return EncoderSoftware, nil
	}
	return "", fmt.Errorf("unknown encoder %q", s)
}

// ColorTags is the set of color metadata flags written to the output.
type ColorTags struct {
	Primaries string
	Transfer  string
	Space     string
}

// Empty reports whether no tags need to be written.
func (c ColorTags) Empty() bool {
	return c.Primaries == "" && c.Transfer == "" && c.Space == ""
}

// PresetSpec is the concrete encode parameter set for one job.
type PresetSpec struct {
	Encoder      EncoderKind
	Resolution   ResolutionClass
	DynamicRange DynamicRange

	RateControlFlag string // -crf, -cq, -global_quality or -quality
	RateControl     int
	SpeedPreset     string // backend-specific speed/quality preset
	PixelFormat     string
	VideoFilter     string
	Color           ColorTags
	FilmGrain       int
	VMAFModel       string
}
