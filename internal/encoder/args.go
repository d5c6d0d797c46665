package encoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"av1conv/internal/model"
)

// BuildArgs constructs the ffmpeg arguments for transcoding job with spec.
// Progress is written as key=value blocks to stdout.
func BuildArgs(job model.JobItem, spec model.PresetSpec) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", job.SourcePath}
	args = append(args, job.Tracks.MapArgs()...)
	args = append(args, "-map_metadata", "0", "-map_chapters", "0")

	args = append(args, "-c:v", spec.Encoder.FFmpegName())
	args = append(args, qualityArgs(spec)...)
	if spec.VideoFilter != "" {
		args = append(args, "-vf", spec.VideoFilter)
	}
	if !spec.Color.Empty() {
		args = append(args,
			"-color_primaries", spec.Color.Primaries,
			"-color_trc", spec.Color.Transfer,
			"-colorspace", spec.Color.Space,
		)
	}
	args = append(args, streamCopyArgs(job.OutputPath)...)
	args = append(args, "-progress", "pipe:1", "-nostats")
	return append(args, job.OutputPath)
}

// qualityArgs renders the rate-control and tuning flags of one backend.
func qualityArgs(spec model.PresetSpec) []string {
	rc := strconv.Itoa(spec.RateControl)
	switch spec.Encoder {
	case model.EncoderNVENC:
		return []string{
			"-preset", spec.SpeedPreset, "-tune", "hq",
			"-rc", "vbr", "-cq", rc, "-b:v", "0",
			"-multipass", "fullres", "-rc-lookahead", "32",
			"-spatial-aq", "1", "-temporal-aq", "1",
		}
	case model.EncoderQSV:
		return []string{
			"-preset", spec.SpeedPreset,
			"-global_quality", rc,
			"-look_ahead_depth", "40",
		}
	case model.EncoderAMF:
		return []string{
			"-usage", "transcoding", "-quality", spec.SpeedPreset,
			"-rc", "cqp", "-qp_i", rc, "-qp_p", rc,
		}
	default:
		return []string{
			"-crf", rc,
			"-preset", spec.SpeedPreset,
			"-svtav1-params", svtParams(spec.FilmGrain),
		}
	}
}

func svtParams(grain int) string {
	if grain <= 0 {
		return "tune=0:enable-overlays=1:scd=1:enable-tf=1"
	}
	return fmt.Sprintf("tune=0:film-grain=%d:film-grain-denoise=1:enable-overlays=1:scd=1", grain)
}

// streamCopyArgs keeps audio and subtitles untouched where the container
// allows it.
func streamCopyArgs(output string) []string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4":
		return []string{"-c:a", "copy", "-c:s", "mov_text", "-movflags", "+faststart"}
	case ".webm":
		return []string{"-c:a", "libopus", "-c:s", "webvtt"}
	default:
		return []string{"-c:a", "copy", "-c:s", "copy"}
	}
}
