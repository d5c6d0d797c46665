package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"av1conv/internal/dirs"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// AV1CONV_QUALITY_VMAF_THRESHOLD=93.
const EnvPrefix = "AV1CONV"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"encoder":             "encoder",
	"vmaf-threshold":      "quality.vmaf_threshold",
	"vmaf":                "quality.vmaf_enabled",
	"crf-search":          "quality.crf_search",
	"svt-preset":          "performance.svt_preset",
	"nvenc-preset":        "performance.nvenc_preset",
	"suffix":              "output.suffix",
	"container":           "output.container",
	"output-dir":          "output.output_directory",
	"audio-lang":          "tracks.preferred_audio_languages",
	"sub-lang":            "tracks.preferred_subtitle_languages",
	"select-all-fallback": "tracks.select_all_fallback",
	"jobs":                "run.jobs",
	"stall-timeout":       "run.stall_timeout",
	"recursive":           "run.recursive",
	"validate":            "run.validate_output",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"log-file":            "log.file",
	"history":             "history.enabled",
	"history-db":          "history.path",
	"metrics-file":        "metrics.textfile",
	"ffmpeg":              "binaries.ffmpeg",
	"ffprobe":             "binaries.ffprobe",
	"ab-av1":              "binaries.ab_av1",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("encoder", "auto")

	v.SetDefault("quality.vmaf_threshold", 90.0)
	v.SetDefault("quality.vmaf_enabled", true)
	v.SetDefault("quality.vmaf_threads", 4)
	v.SetDefault("quality.vmaf_subsample", 10)
	v.SetDefault("quality.crf_search", true)

	v.SetDefault("performance.svt_preset", 4)
	v.SetDefault("performance.nvenc_preset", "p7")
	v.SetDefault("performance.qsv_preset", "veryslow")
	v.SetDefault("performance.amf_quality", "quality")

	v.SetDefault("output.suffix", "_av1")
	v.SetDefault("output.container", "mkv")
	v.SetDefault("output.same_directory", true)
	v.SetDefault("output.output_directory", "")

	v.SetDefault("tracks.preferred_audio_languages", []string{"eng", "ita"})
	v.SetDefault("tracks.preferred_subtitle_languages", []string{"eng"})
	v.SetDefault("tracks.select_all_fallback", true)

	tiers := map[string][5]int{
		//             crf grain nvenc qsv amf
		"sd":          {24, 0, 26, 24, 26},
		"hd":          {23, 0, 25, 23, 25},
		"full_hd":     {22, 0, 24, 22, 24},
		"full_hd_hdr": {23, 3, 23, 23, 23},
		"full_hd_dv":  {20, 3, 21, 20, 21},
		"uhd":         {23, 4, 25, 24, 25},
		"uhd_hdr":     {22, 4, 22, 22, 22},
		"uhd_dv":      {20, 4, 20, 20, 20},
	}
	for tier, vals := range tiers {
		p := "presets." + tier + "."
		v.SetDefault(p+"crf", vals[0])
		v.SetDefault(p+"film_grain", vals[1])
		v.SetDefault(p+"nvenc_cq", vals[2])
		v.SetDefault(p+"qsv_quality", vals[3])
		v.SetDefault(p+"amf_quality", vals[4])
	}

	v.SetDefault("resolution.uhd_min_width", 3000)
	v.SetDefault("resolution.uhd_min_height", 1800)
	v.SetDefault("resolution.fhd_min_width", 1920)
	v.SetDefault("resolution.fhd_min_height", 721)
	v.SetDefault("resolution.hd_min_width", 1280)
	v.SetDefault("resolution.hd_min_height", 600)

	v.SetDefault("run.jobs", 1)
	v.SetDefault("run.stall_timeout", "5m")
	v.SetDefault("run.poll_interval", "250ms")
	v.SetDefault("run.validate_output", true)
	v.SetDefault("run.check_disk_space", true)
	v.SetDefault("run.recursive", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("binaries.ffmpeg", "")
	v.SetDefault("binaries.ffprobe", "")
}

// Loader wires a viper instance with config paths, env, defaults, and flag
// bindings. Use New, then Load.
type Loader struct {
	v    *viper.Viper
	file string
}

// New prepares a loader. cfgFile, when non-empty, is read instead of
// searching the config dir and working directory.
func New(cfgFile string, flags *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if cfgDir, err := dirs.ConfigDir(); err == nil {
			v.AddConfigPath(cfgDir)
		}
		v.AddConfigPath(".")
		v.SetConfigName("config") // config.{yaml|yml|json|toml}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
		// An explicit output directory implies writing outside the source dir.
		if f := flags.Lookup("output-dir"); f != nil && f.Changed && f.Value.String() != "" {
			v.Set("output.same_directory", false)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	l := &Loader{v: v}
	l.file = v.ConfigFileUsed()
	return l, nil
}

// Load decodes and validates the snapshot.
func (l *Loader) Load() (Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// File returns the config file that was read, or "" when defaults only.
func (l *Loader) File() string { return l.file }

// Settings returns the merged key/value view, used by `config show`.
func (l *Loader) Settings() map[string]any { return l.v.AllSettings() }

// Load is a shortcut for New followed by Loader.Load.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	l, err := New(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return l.Load()
}

// Default returns the built-in configuration without consulting files,
// flags, or the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	c.normalize()
	return c
}

func (c *Config) normalize() {
	c.Encoder = strings.ToLower(strings.TrimSpace(c.Encoder))
	c.Output.Container = strings.TrimPrefix(strings.ToLower(c.Output.Container), ".")
	c.Performance.NVENCPreset = strings.ToLower(c.Performance.NVENCPreset)
	c.Tracks.PreferredAudioLanguages = splitLangs(c.Tracks.PreferredAudioLanguages)
	c.Tracks.PreferredSubtitleLanguages = splitLangs(c.Tracks.PreferredSubtitleLanguages)
}

// splitLangs accepts both list values and a single comma-separated env value.
func splitLangs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
