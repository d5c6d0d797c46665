package deps

import (
	"context"
	"testing"

	"av1conv/internal/util"
)

type filtersRunner struct{ out string }

func (f filtersRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	return util.CmdResult{Stdout: []byte(f.out)}, nil
}

func TestHasFilter(t *testing.T) {
	out := `Filters:
  T.. = Timeline support
 ... libplacebo        V->V       Apply various GPU filters from libplacebo
 ... libvmaf           VV->V      Calculate the VMAF between two video streams.
 TSC null              V->V       Pass the source unchanged to the output.
`
	if !HasFilter(context.Background(), filtersRunner{out}, "ffmpeg", "libvmaf") {
		t.Fatal("libvmaf should be detected")
	}
	if HasFilter(context.Background(), filtersRunner{out}, "ffmpeg", "vmaf_cuda") {
		t.Fatal("vmaf_cuda is not listed")
	}
}

func TestFindOverrideMissing(t *testing.T) {
	if _, err := FindFFmpeg("/definitely/not/here/ffmpeg"); err == nil {
		t.Fatal("expected error for missing override")
	}
}

func TestABAV1Version(t *testing.T) {
	got := ABAV1Version(context.Background(), filtersRunner{"ab-av1 0.9.4\n"}, "ab-av1")
	if got != "ab-av1 0.9.4" {
		t.Fatalf("version = %q", got)
	}
}

func TestFindABAV1OverrideMissing(t *testing.T) {
	_, err := FindABAV1("/definitely/not/here/ab-av1")
	if err == nil {
		t.Fatal("expected error for missing override")
	}
}
