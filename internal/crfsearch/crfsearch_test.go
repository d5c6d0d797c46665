package crfsearch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// Captured from `ab-av1 crf-search` with stdout redirected to a file.
const sampleOutput = `crf 32 VMAF 94.61 predicted video stream size 612.04 MiB (28%) taking 21 minutes
`

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	block  bool
	spec   util.CmdSpec
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.spec = spec
	if f.block {
		<-ctx.Done()
		return util.CmdResult{Code: -1, Err: ctx.Err()}, ctx.Err()
	}
	code := 0
	if f.err != nil {
		code = 1
	}
	return util.CmdResult{Stdout: []byte(f.stdout), Stderr: []byte(f.stderr), Code: code, Err: f.err}, f.err
}

func svtSpec() model.PresetSpec {
	return model.PresetSpec{
		Encoder:         model.EncoderSoftware,
		RateControlFlag: "-crf",
		RateControl:     22,
		SpeedPreset:     "4",
		PixelFormat:     "yuv420p10le",
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    Result
		wantErr bool
	}{
		{name: "result line", out: sampleOutput, want: Result{CRF: 32, PredictedVMAF: 94.61}},
		{name: "last line wins", out: "crf 40 VMAF 91.00 (20%)\ncrf 35 VMAF 93.20 predicted video stream size 1 GiB\n", want: Result{CRF: 35, PredictedVMAF: 93.2}},
		{name: "crf without vmaf", out: "crf 27\n", want: Result{CRF: 27}},
		{name: "no crf", out: "Error: Failed to find a suitable crf\n", wantErr: true},
		{name: "empty", out: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.out)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoResult)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.CRF, got.CRF)
			assert.InDelta(t, tt.want.PredictedVMAF, got.PredictedVMAF, 0.001)
		})
	}
}

func TestArgs(t *testing.T) {
	args := Args("/v/a.mkv", svtSpec(), 93)
	assert.Equal(t, []string{
		"crf-search",
		"--input", "/v/a.mkv",
		"--encoder", "libsvtav1",
		"--min-vmaf", "93",
		"--preset", "4",
		"--pix-format", "yuv420p10le",
	}, args)

	hw := model.PresetSpec{Encoder: model.EncoderNVENC, SpeedPreset: "p7", PixelFormat: "p010le"}
	args = Args("/v/a.mkv", hw, 92.5)
	assert.Contains(t, args, "av1_nvenc")
	assert.Contains(t, args, "92.5")
	assert.NotContains(t, args, "--pix-format")
}

func TestSearch(t *testing.T) {
	r := &fakeRunner{stdout: sampleOutput}
	s := New("/usr/bin/ab-av1", r, nil)

	got, err := s.Search(context.Background(), "/v/a.mkv", svtSpec(), 90)
	require.NoError(t, err)
	assert.Equal(t, 32, got.CRF)
	assert.Equal(t, "/usr/bin/ab-av1", r.spec.Path)
	assert.True(t, r.spec.CaptureStdout)
}

func TestSearchFailure(t *testing.T) {
	r := &fakeRunner{stderr: "Error: Failed to find a suitable crf\n", err: errors.New("exit status 1")}
	_, err := New("ab-av1", r, nil).Search(context.Background(), "/v/a.mkv", svtSpec(), 99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suitable crf")
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("ab-av1", &fakeRunner{block: true}, nil).Search(ctx, "/v/a.mkv", svtSpec(), 90)
	assert.ErrorIs(t, err, context.Canceled)
}
