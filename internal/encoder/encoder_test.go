package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// fakeRunner stands in for ffmpeg. It writes the output path (the last
// argument), replays progress lines, and then behaves according to mode.
type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	lines   []string
	output  []byte
	mode    string // "ok", "fail", "nostart", "hang", "empty"
	started chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.mode == "nostart" {
		err := errors.New("exec: \"ffmpeg\": executable file not found in $PATH")
		return util.CmdResult{Code: -1, Err: err}, err
	}
	out := spec.Args[len(spec.Args)-1]
	data := f.output
	if f.mode == "empty" {
		data = nil
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return util.CmdResult{Code: -1, Err: err}, err
	}
	for _, l := range f.lines {
		spec.StdoutLine(l)
	}
	if f.started != nil {
		close(f.started)
	}
	switch f.mode {
	case "fail":
		err := errors.New("exit status 1")
		stderr := []byte("line1\nline2\nline3\nline4\nline5\nline6\n[libsvtav1] Error: invalid preset\n")
		return util.CmdResult{Code: 1, Err: err, Stderr: stderr}, err
	case "hang":
		<-ctx.Done()
		err := errors.New("signal: killed")
		return util.CmdResult{Code: -1, Err: err}, err
	}
	return util.CmdResult{}, nil
}

func newJob(t *testing.T, codec string) model.JobItem {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mkv")
	if err := os.WriteFile(src, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	return model.JobItem{
		ID:         "job-1",
		SourcePath: src,
		OutputPath: filepath.Join(dir, "out", "in_av1.mkv"),
		Media:      model.MediaDescriptor{Codec: codec, DurationSec: 100, SizeBytes: 4096},
	}
}

func newEncoder(r util.CmdRunner, stall time.Duration) *Encoder {
	log, _ := test.NewNullLogger()
	return New("ffmpeg", r, Options{StallTimeout: stall, PollInterval: 5 * time.Millisecond, Logger: log})
}

var spec = model.PresetSpec{Encoder: model.EncoderSoftware, RateControlFlag: "-crf", RateControl: 22, SpeedPreset: "4", PixelFormat: "yuv420p10le", VideoFilter: "format=yuv420p10le"}

func TestEncodeSkipsAV1WithoutSubprocess(t *testing.T) {
	r := &fakeRunner{mode: "ok"}
	job := newJob(t, "av1")
	out := newEncoder(r, 0).Encode(context.Background(), job, spec, nil)
	if out.Kind != model.OutcomeSkipped || out.Reason != model.SkipAlreadyAV1 {
		t.Fatalf("outcome = %v", out)
	}
	if r.calls != 0 {
		t.Fatalf("runner called %d times", r.calls)
	}
}

func TestEncodeCompleted(t *testing.T) {
	r := &fakeRunner{
		mode:   "ok",
		output: make([]byte, 1000),
		lines:  []string{"out_time_us=50000000", "progress=continue", "out_time_us=100000000", "progress=end"},
	}
	job := newJob(t, "h264")

	var mu sync.Mutex
	var samples []Sample
	out := newEncoder(r, 0).Encode(context.Background(), job, spec, func(s Sample) {
		mu.Lock()
		samples = append(samples, s)
		mu.Unlock()
	})
	if out.Kind != model.OutcomeCompleted {
		t.Fatalf("outcome = %v", out)
	}
	if out.SizeBefore != 4096 || out.SizeAfter != 1000 || out.OutputPath != job.OutputPath {
		t.Fatalf("completed = %+v", out)
	}
	if len(samples) == 0 || samples[len(samples)-1].Fraction != 1 {
		t.Fatalf("last sample should be complete, got %+v", samples)
	}
}

func TestEncodeNonZeroExit(t *testing.T) {
	r := &fakeRunner{mode: "fail", output: []byte("partial")}
	job := newJob(t, "hevc")
	out := newEncoder(r, 0).Encode(context.Background(), job, spec, nil)
	if out.Kind != model.OutcomeFailed || out.Stage != model.PhaseEncode {
		t.Fatalf("outcome = %v", out)
	}
	var ee *EncodeError
	if !errors.As(out.Err, &ee) || ee.Kind != NonZeroExit || ee.ExitCode != 1 {
		t.Fatalf("err = %#v", out.Err)
	}
	if !errors.Is(out.Err, ErrNonZeroExit) {
		t.Fatal("errors.Is(ErrNonZeroExit) = false")
	}
	if len(ee.Stderr) != 5 || ee.Stderr[4] != "[libsvtav1] Error: invalid preset" {
		t.Fatalf("stderr tail = %v", ee.Stderr)
	}
	if util.Exists(job.OutputPath) {
		t.Fatal("partial output left on disk")
	}
}

func TestEncodeLaunchFailed(t *testing.T) {
	out := newEncoder(&fakeRunner{mode: "nostart"}, 0).Encode(context.Background(), newJob(t, "h264"), spec, nil)
	if !errors.Is(out.Err, ErrLaunchFailed) {
		t.Fatalf("err = %v", out.Err)
	}
}

func TestEncodeEmptyOutput(t *testing.T) {
	job := newJob(t, "h264")
	out := newEncoder(&fakeRunner{mode: "empty"}, 0).Encode(context.Background(), job, spec, nil)
	if out.Kind != model.OutcomeFailed || util.Exists(job.OutputPath) {
		t.Fatalf("outcome = %v", out)
	}
}

func TestEncodeCancelled(t *testing.T) {
	started := make(chan struct{})
	r := &fakeRunner{mode: "hang", output: []byte("partial"), lines: []string{"out_time_us=1000000", "progress=continue"}, started: started}
	job := newJob(t, "h264")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	out := newEncoder(r, 0).Encode(ctx, job, spec, nil)
	if out.Kind != model.OutcomeCancelled {
		t.Fatalf("outcome = %v", out)
	}
	if util.Exists(job.OutputPath) {
		t.Fatal("partial output left on disk")
	}
}

func TestEncodeStalled(t *testing.T) {
	r := &fakeRunner{mode: "hang", output: []byte("partial"), lines: []string{"out_time_us=1000000", "progress=continue"}}
	job := newJob(t, "h264")
	out := newEncoder(r, 30*time.Millisecond).Encode(context.Background(), job, spec, nil)
	if !errors.Is(out.Err, ErrStalled) {
		t.Fatalf("outcome = %v", out)
	}
	if util.Exists(job.OutputPath) {
		t.Fatal("partial output left on disk")
	}
}
