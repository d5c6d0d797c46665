package model

import "strings"

// DynamicRange classifies a video stream's transfer characteristics.
type DynamicRange string

const (
	RangeSDR         DynamicRange = "sdr"
	RangeHDR         DynamicRange = "hdr"
	RangeDolbyVision DynamicRange = "dolby_vision"
)

// DynamicRanges lists every range class in ascending order of signalling.
func DynamicRanges() []DynamicRange {
	return []DynamicRange{RangeSDR, RangeHDR, RangeDolbyVision}
}

// Transfer is the HDR transfer family, used to pick output color tags.
type Transfer string

const (
	TransferNone Transfer = ""
	TransferPQ   Transfer = "pq"
	TransferHLG  Transfer = "hlg"
)

// TrackKind distinguishes audio and subtitle tracks.
type TrackKind string

const (
	TrackAudio    TrackKind = "audio"
	TrackSubtitle TrackKind = "subtitle"
)

// Track describes one audio or subtitle stream of a source file.
type Track struct {
	Kind        TrackKind
	Index       int // type-relative, as used by -map 0:a:N
	StreamIndex int // absolute stream index in the container
	Language    string
	Codec       string
	Title       string
	Channels    int
	Default     bool
	Forced      bool
}

// MediaDescriptor is the parsed result of probing one input file.
type MediaDescriptor struct {
	Path           string
	VideoIndex     int // type-relative index of the primary video stream
	Codec          string
	Width          int
	Height         int
	PixelFormat    string
	ColorPrimaries string
	ColorTransfer  string
	ColorSpace     string
	DynamicRange   DynamicRange
	Transfer       Transfer
	FrameRate      string // r_frame_rate as reported, e.g. "24000/1001"
	DurationSec    float64
	SizeBytes      int64
	BitRate        int64
	Audio          []Track
	Subtitles      []Track
}

// TargetCodecNames are the codec identifiers ffprobe may report for AV1.
var TargetCodecNames = []string{"av1", "av01", "libaom-av1", "libsvtav1", "libdav1d"}

// IsAV1 reports whether the primary video stream is already AV1.
func (m MediaDescriptor) IsAV1() bool {
	c := strings.ToLower(strings.TrimSpace(m.Codec))
	for _, name := range TargetCodecNames {
		if c == name {
			return true
		}
	}
	return false
}

// IsHDR reports whether the stream carries HDR or Dolby Vision signalling.
func (m MediaDescriptor) IsHDR() bool {
	return m.DynamicRange == RangeHDR || m.DynamicRange == RangeDolbyVision
}

// ResolutionClass buckets a video by its frame dimensions.
type ResolutionClass string

const (
	ResSD  ResolutionClass = "sd"
	ResHD  ResolutionClass = "hd"
	ResFHD ResolutionClass = "fhd"
	ResUHD ResolutionClass = "uhd"
)

// ResolutionClasses lists every class from smallest to largest.
func ResolutionClasses() []ResolutionClass {
	return []ResolutionClass{ResSD, ResHD, ResFHD, ResUHD}
}

// Label returns the human label used in plans and summaries.
func (r ResolutionClass) Label() string {
	switch r {
	case ResUHD:
		return "4K"
	case ResFHD:
		return "1080p"
	case ResHD:
		return "720p"
	default:
		return "SD"
	}
}

// ResolutionThresholds holds the minimum dimensions for each class above SD.
// A video belongs to a class when either its width or its height reaches the
// class minimum.
type ResolutionThresholds struct {
	UHDMinWidth  int `mapstructure:"uhd_min_width" yaml:"uhd_min_width"`
	UHDMinHeight int `mapstructure:"uhd_min_height" yaml:"uhd_min_height"`
	FHDMinWidth  int `mapstructure:"fhd_min_width" yaml:"fhd_min_width"`
	FHDMinHeight int `mapstructure:"fhd_min_height" yaml:"fhd_min_height"`
	HDMinWidth   int `mapstructure:"hd_min_width" yaml:"hd_min_width"`
	HDMinHeight  int `mapstructure:"hd_min_height" yaml:"hd_min_height"`
}

// DefaultResolutionThresholds tolerates cropped and anamorphic encodes:
// a 3840x1600 scope film is still UHD, a 1440x1080 encode is still FHD.
func DefaultResolutionThresholds() ResolutionThresholds {
	return ResolutionThresholds{
		UHDMinWidth: 3000, UHDMinHeight: 1800,
		FHDMinWidth: 1920, FHDMinHeight: 721,
		HDMinWidth: 1280, HDMinHeight: 600,
	}
}

// Classify maps frame dimensions to a ResolutionClass. Anything above 4K is UHD.
func (t ResolutionThresholds) Classify(width, height int) ResolutionClass {
	switch {
	case width >= t.UHDMinWidth || height >= t.UHDMinHeight:
		return ResUHD
	case width >= t.FHDMinWidth || height >= t.FHDMinHeight:
		return ResFHD
	case width >= t.HDMinWidth || height >= t.HDMinHeight:
		return ResHD
	default:
		return ResSD
	}
}
