package config

import (
	"time"

	"av1conv/internal/model"
)

// Config is the immutable snapshot a run is executed against.
type Config struct {
	Encoder     string                     `mapstructure:"encoder" yaml:"encoder"`
	Quality     QualityConfig              `mapstructure:"quality" yaml:"quality"`
	Performance PerformanceConfig          `mapstructure:"performance" yaml:"performance"`
	Output      OutputConfig               `mapstructure:"output" yaml:"output"`
	Tracks      TracksConfig               `mapstructure:"tracks" yaml:"tracks"`
	Presets     PresetsConfig              `mapstructure:"presets" yaml:"presets"`
	Resolution  model.ResolutionThresholds `mapstructure:"resolution" yaml:"resolution"`
	Run         RunConfig                  `mapstructure:"run" yaml:"run"`
	Log         LogConfig                  `mapstructure:"log" yaml:"log"`
	History     HistoryConfig              `mapstructure:"history" yaml:"history"`
	Metrics     MetricsConfig              `mapstructure:"metrics" yaml:"metrics"`
	Binaries    BinariesConfig             `mapstructure:"binaries" yaml:"binaries"`
}

type QualityConfig struct {
	VMAFThreshold float64 `mapstructure:"vmaf_threshold" yaml:"vmaf_threshold"`
	VMAFEnabled   bool    `mapstructure:"vmaf_enabled" yaml:"vmaf_enabled"`
	VMAFThreads   int     `mapstructure:"vmaf_threads" yaml:"vmaf_threads"`
	VMAFSubsample int     `mapstructure:"vmaf_subsample" yaml:"vmaf_subsample"`
	// CRFSearch asks ab-av1 for a per-file rate-control value when the
	// binary is available; the preset table is the fallback.
	CRFSearch bool `mapstructure:"crf_search" yaml:"crf_search"`
}

type PerformanceConfig struct {
	SVTPreset   int    `mapstructure:"svt_preset" yaml:"svt_preset"`
	NVENCPreset string `mapstructure:"nvenc_preset" yaml:"nvenc_preset"`
	QSVPreset   string `mapstructure:"qsv_preset" yaml:"qsv_preset"`
	AMFQuality  string `mapstructure:"amf_quality" yaml:"amf_quality"`
}

type OutputConfig struct {
	Suffix          string `mapstructure:"suffix" yaml:"suffix"`
	Container       string `mapstructure:"container" yaml:"container"`
	SameDirectory   bool   `mapstructure:"same_directory" yaml:"same_directory"`
	OutputDirectory string `mapstructure:"output_directory" yaml:"output_directory"`
}

type TracksConfig struct {
	PreferredAudioLanguages    []string `mapstructure:"preferred_audio_languages" yaml:"preferred_audio_languages"`
	PreferredSubtitleLanguages []string `mapstructure:"preferred_subtitle_languages" yaml:"preferred_subtitle_languages"`
	SelectAllFallback          bool     `mapstructure:"select_all_fallback" yaml:"select_all_fallback"`
}

// Tuning is the rate-control and grain setting for one preset tier. A zero
// hardware value means "use CRF".
type Tuning struct {
	CRF        int `mapstructure:"crf" yaml:"crf"`
	FilmGrain  int `mapstructure:"film_grain" yaml:"film_grain"`
	NVENCCQ    int `mapstructure:"nvenc_cq" yaml:"nvenc_cq"`
	QSVQuality int `mapstructure:"qsv_quality" yaml:"qsv_quality"`
	AMFQuality int `mapstructure:"amf_quality" yaml:"amf_quality"`
}

// PresetsConfig is the per-tier table. SD and HD have no HDR tiers of their
// own; see preset.NewTable for how those cells are derived.
type PresetsConfig struct {
	SD        Tuning `mapstructure:"sd" yaml:"sd"`
	HD        Tuning `mapstructure:"hd" yaml:"hd"`
	FullHD    Tuning `mapstructure:"full_hd" yaml:"full_hd"`
	FullHDHDR Tuning `mapstructure:"full_hd_hdr" yaml:"full_hd_hdr"`
	FullHDDV  Tuning `mapstructure:"full_hd_dv" yaml:"full_hd_dv"`
	UHD       Tuning `mapstructure:"uhd" yaml:"uhd"`
	UHDHDR    Tuning `mapstructure:"uhd_hdr" yaml:"uhd_hdr"`
	UHDDV     Tuning `mapstructure:"uhd_dv" yaml:"uhd_dv"`
}

type RunConfig struct {
	Jobs           int           `mapstructure:"jobs" yaml:"jobs"`
	StallTimeout   time.Duration `mapstructure:"stall_timeout" yaml:"stall_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ValidateOutput bool          `mapstructure:"validate_output" yaml:"validate_output"`
	CheckDiskSpace bool          `mapstructure:"check_disk_space" yaml:"check_disk_space"`
	Recursive      bool          `mapstructure:"recursive" yaml:"recursive"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

type BinariesConfig struct {
	FFmpeg  string `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe" yaml:"ffprobe"`
	ABAV1   string `mapstructure:"ab_av1" yaml:"ab_av1"`
}
