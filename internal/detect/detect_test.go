package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

const encodersOut = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libaom-av1           libaom AV1 (codec av1)
 V....D libsvtav1            SVT-AV1(Scalable Video Technology for AV1) encoder (codec av1)
 V....D av1_nvenc            NVIDIA NVENC av1 encoder (codec av1)
 V....D av1_qsv              AV1 (Intel Quick Sync Video acceleration) (codec av1)
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`

// fakeRunner answers -encoders with a canned listing and fails test encodes
// for every encoder not in working.
type fakeRunner struct {
	listing string
	working map[string]bool
	calls   [][]string
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.calls = append(f.calls, spec.Args)
	if len(spec.Args) > 1 && spec.Args[1] == "-encoders" {
		return util.CmdResult{Stdout: []byte(f.listing)}, nil
	}
	for i, a := range spec.Args {
		if a == "-c:v" && i+1 < len(spec.Args) {
			if f.working[spec.Args[i+1]] {
				return util.CmdResult{}, nil
			}
			err := errors.New("exit status 1")
			return util.CmdResult{Code: 1, Err: err, Stderr: []byte("Cannot load nvcuda.dll\n")}, err
		}
	}
	return util.CmdResult{}, nil
}

func (f *fakeRunner) testEncodes() int {
	n := 0
	for _, c := range f.calls {
		if strings.Contains(strings.Join(c, " "), "lavfi") {
			n++
		}
	}
	return n
}

func newDetector(goos string, r util.CmdRunner) *Detector {
	log, _ := test.NewNullLogger()
	d := New("ffmpeg", r, log)
	d.GOOS = goos
	return d
}

func TestParseEncoders(t *testing.T) {
	got := ParseEncoders(encodersOut)
	assert.Equal(t, map[string]bool{
		"libaom-av1": true, "libsvtav1": true, "av1_nvenc": true, "av1_qsv": true,
	}, got)
	assert.Empty(t, ParseEncoders(""))
}

func TestDetectPriority(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		working map[string]bool
		want    model.EncoderKind
	}{
		{"nvenc wins", "linux", map[string]bool{"av1_nvenc": true, "av1_qsv": true}, model.EncoderNVENC},
		{"qsv when nvenc fails", "linux", map[string]bool{"av1_qsv": true}, model.EncoderQSV},
		{"no hardware", "linux", nil, model.EncoderSoftware},
		{"amf not advertised", "windows", map[string]bool{"av1_amf": true}, model.EncoderSoftware},
		{"darwin is software only", "darwin", map[string]bool{"av1_nvenc": true, "av1_qsv": true}, model.EncoderSoftware},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{listing: encodersOut, working: tt.working}
			det := newDetector(tt.goos, r).Detect(context.Background())
			assert.Equal(t, tt.want, det.Kind)
			assert.True(t, det.SoftwareAvailable)
			assert.True(t, det.Usable())
		})
	}
}

func TestDetectDarwinRunsNoTestEncodes(t *testing.T) {
	r := &fakeRunner{listing: encodersOut, working: map[string]bool{"av1_nvenc": true}}
	newDetector("darwin", r).Detect(context.Background())
	assert.Equal(t, 0, r.testEncodes())
}

func TestDetectNeverFails(t *testing.T) {
	r := &fakeRunner{listing: ""}
	det := newDetector("linux", r).Detect(context.Background())
	assert.Equal(t, model.EncoderSoftware, det.Kind)
	assert.False(t, det.SoftwareAvailable)
	assert.False(t, det.Usable(), "caller must refuse a run without any encoder")
	require.NotEmpty(t, det.Attempts)
	assert.Equal(t, model.EncoderSoftware, det.Attempts[len(det.Attempts)-1].Kind)
}

func TestForce(t *testing.T) {
	r := &fakeRunner{listing: encodersOut}
	det := newDetector("linux", r).Force(context.Background(), model.EncoderAMF)
	assert.Equal(t, model.EncoderAMF, det.Kind)
	assert.True(t, det.Forced)
	assert.False(t, det.Usable(), "av1_amf is not in the listing")
	assert.Equal(t, 0, r.testEncodes())
}

func TestForceHardwareRunsTestEncode(t *testing.T) {
	r := &fakeRunner{listing: encodersOut}
	det := newDetector("linux", r).Force(context.Background(), model.EncoderNVENC)
	assert.Equal(t, model.EncoderNVENC, det.Kind)
	assert.Equal(t, 1, r.testEncodes())
	assert.False(t, det.Usable(), "failed test encode must make a forced kind unusable")
	require.Len(t, det.Attempts, 1)
	assert.Contains(t, det.Attempts[0].Reason, "test encode failed")

	r = &fakeRunner{listing: encodersOut, working: map[string]bool{"av1_nvenc": true}}
	det = newDetector("linux", r).Force(context.Background(), model.EncoderNVENC)
	assert.True(t, det.Usable())
}

func TestForceSoftware(t *testing.T) {
	r := &fakeRunner{listing: encodersOut}
	det := newDetector("linux", r).Force(context.Background(), model.EncoderSoftware)
	assert.True(t, det.Usable())
	assert.Equal(t, 0, r.testEncodes())

	det = newDetector("linux", &fakeRunner{listing: ""}).Force(context.Background(), model.EncoderSoftware)
	assert.False(t, det.Usable())
}

func TestTestEncodeArgs(t *testing.T) {
	args := TestEncodeArgs(model.EncoderQSV)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "color=black:s=256x256:d=0.1")
	assert.Contains(t, joined, "format=nv12")
	assert.Contains(t, joined, "-c:v av1_qsv -f null -")
}
