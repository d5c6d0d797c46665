package util

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestTailLines(t *testing.T) {
	in := []byte("a\nb\n\nc\nd\ne\nf\n")
	got := TailLines(in, 3)
	if !reflect.DeepEqual(got, []string{"d", "e", "f"}) {
		t.Fatalf("TailLines = %v", got)
	}
	if got := TailLines(nil, 5); len(got) != 0 {
		t.Fatalf("TailLines(nil) = %v", got)
	}
	if got := TailLines([]byte("x\ny"), 5); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("short input = %v", got)
	}
}

func TestShellQuote(t *testing.T) {
	got := ShellQuote("ffmpeg", []string{"-i", "my file.mkv", "-lavfi", "[0:v]null"})
	want := "ffmpeg -i 'my file.mkv' -lavfi '[0:v]null'"
	if got != want {
		t.Fatalf("ShellQuote = %q, want %q", got, want)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "partial.mkv")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(p); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if Exists(p) {
		t.Fatal("file still present")
	}
	if err := RemoveIfExists(p); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	_ = os.WriteFile(p, make([]byte, 1234), 0o644)
	n, err := FileSize(p)
	if err != nil || n != 1234 {
		t.Fatalf("FileSize = %d, %v", n, err)
	}
	if _, err := FileSize(dir); err == nil {
		t.Fatal("directory should not be a regular file")
	}
}

func TestLineWriterSplitsAcrossWrites(t *testing.T) {
	var got []string
	w := &lineWriter{fn: func(s string) { got = append(got, s) }}
	for _, chunk := range []string{"frame=1\nfps=2", "3.5\r\n", "progress=end\nta", "il"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	w.Flush()
	want := []string{"frame=1", "fps=23.5", "progress=end", "tail"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestRunCapturesAndStreamsLines(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	var streamed []string
	r := &DefaultRunner{WaitDelay: time.Second}
	res, err := r.Run(context.Background(), CmdSpec{
		Path:       sh,
		Args:       []string{"-c", "echo out1; echo err1 >&2; printf out2"},
		StdoutLine: func(s string) { streamed = append(streamed, s) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(streamed, []string{"out1", "out2"}) {
		t.Errorf("streamed = %q", streamed)
	}
	if len(res.Stdout) != 0 {
		t.Errorf("stdout buffered without CaptureStdout: %q", res.Stdout)
	}
	if string(res.Stderr) != "err1\n" || res.Code != 0 {
		t.Errorf("stderr = %q code = %d", res.Stderr, res.Code)
	}
}

func TestRunCancelledReturnsDespiteHeldPipe(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	// The background sleep inherits stdout and stderr and outlives the shell.
	r := &DefaultRunner{WaitDelay: 100 * time.Millisecond}
	start := time.Now()
	res, err := r.Run(ctx, CmdSpec{Path: sh, Args: []string{"-c", "sleep 4 & wait"}})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error from a killed process")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("Run returned after %v; held pipes were not closed", elapsed)
	}
	if res.Code == 0 {
		t.Errorf("code = %d", res.Code)
	}
}
