package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"av1conv/internal/util"
)

// find resolves an explicit override (path or PATH name) or the default name.
func find(override, name string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override, nil
		}
		if p, err := exec.LookPath(override); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find %s at %q", name, override)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find %s in PATH", name)
}

// FindFFmpeg returns the path to the ffmpeg binary.
func FindFFmpeg(override string) (string, error) { return find(override, "ffmpeg") }

// FindFFprobe returns the path to the ffprobe binary.
func FindFFprobe(override string) (string, error) { return find(override, "ffprobe") }

// FindABAV1 returns the path to ab-av1. It is optional; callers fall back to
// the preset table when it is missing.
func FindABAV1(override string) (string, error) { return find(override, "ab-av1") }

// ABAV1Version returns the first line of `ab-av1 --version`, or "" when the
// binary does not run.
func ABAV1Version(ctx context.Context, r util.CmdRunner, bin string) string {
	res, err := r.Run(ctx, util.CmdSpec{Path: bin, Args: []string{"--version"}, CaptureStdout: true})
	if err != nil {
		return ""
	}
	return firstLine(string(res.Stdout))
}

// Status summarizes the external tools a run depends on.
type Status struct {
	FFmpeg     string
	FFprobe    string
	FFmpegErr  error
	FFprobeErr error
	Version    string // first line of ffmpeg -version
	LibVMAF    bool
}

// Ready reports whether both binaries were found.
func (s Status) Ready() bool { return s.FFmpegErr == nil && s.FFprobeErr == nil }

// Check locates ffmpeg and ffprobe and asks ffmpeg whether it was built with
// the libvmaf filter.
func Check(ctx context.Context, r util.CmdRunner, ffmpegOverride, ffprobeOverride string) Status {
	var st Status
	st.FFmpeg, st.FFmpegErr = FindFFmpeg(ffmpegOverride)
	st.FFprobe, st.FFprobeErr = FindFFprobe(ffprobeOverride)
	if st.FFmpegErr != nil {
		return st
	}
	if res, err := r.Run(ctx, util.CmdSpec{Path: st.FFmpeg, Args: []string{"-hide_banner", "-version"}}); err == nil {
		st.Version = firstLine(string(res.Stdout))
	}
	st.LibVMAF = HasFilter(ctx, r, st.FFmpeg, "libvmaf")
	return st
}

// HasFilter reports whether `ffmpeg -filters` lists name.
func HasFilter(ctx context.Context, r util.CmdRunner, ffmpeg, name string) bool {
	res, err := r.Run(ctx, util.CmdSpec{Path: ffmpeg, Args: []string{"-hide_banner", "-filters"}})
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		fields := strings.Fields(line)
		// " T.. libvmaf           VV->V      Calculate the VMAF ..."
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
