package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"av1conv/internal/model"
	"av1conv/internal/pipeline"
	"av1conv/internal/progress"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *ExitError
	require.True(t, errors.As(err, &ee), "want ExitError, got %v", err)
	return ee.Code
}

func TestConfigShow(t *testing.T) {
	cfg := writeConfig(t, "quality:\n  vmaf_threshold: 93\n")
	out, err := execute(t, "config", "show", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "# "+cfg)
	assert.Contains(t, out, "vmaf_threshold: 93")
	assert.Contains(t, out, "suffix:")
}

func TestInvalidConfigIsCLIError(t *testing.T) {
	cfg := writeConfig(t, "quality:\n  vmaf_threshold: 150\n")
	_, err := execute(t, "config", "show", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCLIError, exitCode(t, err))
	assert.Contains(t, err.Error(), "vmaf_threshold")
}

func TestRunWithoutVideosIsCLIError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	_, err := execute(t, "run", "--no-ui", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCLIError, exitCode(t, err))
	assert.Contains(t, err.Error(), "no video files")
}

func TestCompletionUsesCommandOutput(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "av1conv")
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := newTextReporter(&buf, 2)
	speed := "1.50x"
	eta := 90 * time.Second
	for _, pct := range []float64{5, 12, 15, 25} {
		r.Update(progress.Update{JobID: "a", Path: "/v/a.mkv", Stage: progress.StageEncoding, Percent: pct, Speed: &speed, ETA: &eta})
	}
	r.Update(progress.Update{JobID: "a", Path: "/v/a.mkv", Stage: progress.StageVerifying, Percent: -1})
	r.Result(progress.Result{
		JobID:    "a",
		Path:     "/v/a.mkv",
		Outcome:  model.Completed("/v/a.av1.mkv", 1000, 400),
		Score:    &model.QualityScore{Mean: 96.1},
		Decision: model.Delete,
	})
	r.Result(progress.Result{JobID: "b", Path: "/v/b.mkv", Outcome: model.Skipped(model.SkipAlreadyAV1)})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "a.mkv   0%")
	assert.Contains(t, lines[1], " 10% 1.50x")
	assert.Contains(t, lines[2], " 20%")
	assert.Contains(t, lines[3], "[1/2] ✓ a.mkv")
	assert.Contains(t, lines[3], "VMAF 96.10 Excellent")
	assert.Contains(t, lines[3], "source deleted")
	assert.Contains(t, lines[4], "[2/2] - b.mkv: skipped (already-AV1)")
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sum := model.RunSummary{
		Encoder:    model.EncoderNVENC,
		StartedAt:  start,
		FinishedAt: start.Add(75 * time.Second),
		Items: []model.ItemResult{
			{Job: model.JobItem{SourcePath: "/v/a.mkv"}, Outcome: model.Completed("/v/a.av1.mkv", 4096, 1024), Decision: model.Delete},
			{Job: model.JobItem{SourcePath: "/v/b.mkv"}, Outcome: model.Failed(model.PhaseEncode, errors.New("exit 1"), "")},
			{Job: model.JobItem{SourcePath: "/v/c.mkv"}, Outcome: model.Completed("/v/c.av1.mkv", 10, 5), Decision: model.Delete, DeleteErr: "permission denied"},
		},
	}
	sum.Tally()

	var buf bytes.Buffer
	printSummary(&buf, sum)
	out := buf.String()
	assert.Contains(t, out, "NVIDIA NVENC")
	assert.Contains(t, out, "Converted:  2")
	assert.Contains(t, out, "Failed:     1")
	assert.Contains(t, out, "Deleted:    1")
	assert.Contains(t, out, "✗ /v/b.mkv: failed at encode: exit 1")
	assert.Contains(t, out, "! /v/c.mkv: permission denied")
	assert.NotContains(t, out, "Cancelled:")
}

func TestPrintPlan(t *testing.T) {
	plans := []pipeline.PlanItem{
		{Job: model.JobItem{SourcePath: "/v/old.mkv"}, Skip: model.SkipProbeFailed, Err: errors.New("moov atom not found")},
		{Job: model.JobItem{SourcePath: "/v/done.mkv"}, Skip: model.SkipAlreadyAV1},
		{
			Job: model.JobItem{
				SourcePath: "/v/film.mkv",
				OutputPath: "/v/film.av1.mkv",
				Media:      model.MediaDescriptor{Codec: "hevc", Width: 3840, Height: 2160, DynamicRange: model.RangeHDR},
				Tracks:     model.TrackSelection{Audio: []int{0}},
			},
			Class: model.ResUHD,
			Spec: model.PresetSpec{
				Encoder:         model.EncoderSoftware,
				RateControlFlag: "-crf",
				RateControl:     30,
				SpeedPreset:     "6",
				PixelFormat:     "yuv420p10le",
				FilmGrain:       8,
				VMAFModel:       "vmaf_v0.6.1neg",
			},
		},
	}
	var buf bytes.Buffer
	printPlan(&buf, model.EncoderSoftware, plans)
	out := buf.String()
	assert.Contains(t, out, "skip:     probe-failed: moov atom not found")
	assert.Contains(t, out, "skip:     already-AV1")
	assert.Contains(t, out, "-crf 30, preset 6, yuv420p10le")
	assert.Contains(t, out, "grain:    8")
	assert.Contains(t, out, "tracks:   -map 0:v:0 -map 0:a:0")
	assert.Contains(t, out, "vmaf_v0.6.1neg")
	assert.Contains(t, out, "1 of 3 files would be encoded")
}

func TestTrackChoiceFromFlags(t *testing.T) {
	cmd := newRunCmd()
	assert.Nil(t, trackChoice(cmd.Flags()), "no flags means no explicit choice")

	require.NoError(t, cmd.Flags().Parse([]string{"--audio", "0,2"}))
	c := trackChoice(cmd.Flags())
	require.NotNil(t, c)
	assert.Equal(t, []int{0, 2}, c.Audio)
	assert.Nil(t, c.Subtitles)

	cmd = newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--subs", "1"}))
	c = trackChoice(cmd.Flags())
	require.NotNil(t, c)
	assert.Nil(t, c.Audio)
	assert.Equal(t, []int{1}, c.Subtitles)
}
