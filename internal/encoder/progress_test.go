package encoder

import (
	"math"
	"strings"
	"testing"
	"time"
)

// A block as printed by `ffmpeg -progress pipe:1 -nostats` while encoding
// with libsvtav1.
const sampleBlock = `frame=1437
fps=23.87
stream_0_0_q=-0.0
bitrate=1843.2kbits/s
total_size=13795328
out_time_us=59875000
out_time_ms=59875000
out_time=00:00:59.875000
dup_frames=0
drop_frames=0
speed=0.994x
progress=continue`

func feed(ps *ProgressState, text string, dur float64) (Sample, bool) {
	var s Sample
	var ok bool
	for _, line := range strings.Split(text, "\n") {
		if got, emitted := ps.UpdateFromLine(line, dur); emitted {
			s, ok = got, true
		}
	}
	return s, ok
}

func TestProgressState_UpdateFromLine(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		durationSec  float64
		wantOk       bool
		wantFraction float64
		wantEnd      bool
	}{
		{
			name:         "svt block",
			text:         sampleBlock,
			durationSec:  119.75,
			wantOk:       true,
			wantFraction: 0.5,
		},
		{
			name:         "unknown duration",
			text:         sampleBlock,
			durationSec:  0,
			wantOk:       true,
			wantFraction: -1,
		},
		{
			name:         "out_time only",
			text:         "out_time_us=N/A\nout_time=00:01:00.000000\nprogress=continue",
			durationSec:  120,
			wantOk:       true,
			wantFraction: 0.5,
		},
		{
			name:         "end marker completes",
			text:         "out_time_us=119000000\nprogress=end",
			durationSec:  120,
			wantOk:       true,
			wantFraction: 1,
			wantEnd:      true,
		},
		{
			name:         "overshoot is clamped",
			text:         "out_time_us=130000000\nprogress=continue",
			durationSec:  120,
			wantOk:       true,
			wantFraction: 1,
		},
		{
			name:        "no marker",
			text:        "frame=100\nfps=24",
			durationSec: 60,
			wantOk:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := &ProgressState{}
			s, ok := feed(ps, tt.text, tt.durationSec)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if math.Abs(s.Fraction-tt.wantFraction) > 1e-6 {
				t.Errorf("Fraction = %v, want %v", s.Fraction, tt.wantFraction)
			}
			if s.End != tt.wantEnd {
				t.Errorf("End = %v, want %v", s.End, tt.wantEnd)
			}
		})
	}
}

func TestSampleFields(t *testing.T) {
	s, ok := feed(&ProgressState{}, sampleBlock, 119.75)
	if !ok {
		t.Fatal("no sample")
	}
	if s.Frame != 1437 || s.TotalSize != 13795328 {
		t.Errorf("frame/size = %d/%d", s.Frame, s.TotalSize)
	}
	if math.Abs(s.Speed-0.994) > 1e-9 || math.Abs(s.FPS-23.87) > 1e-9 {
		t.Errorf("speed/fps = %v/%v", s.Speed, s.FPS)
	}
	if s.OutTime != 59875*time.Millisecond {
		t.Errorf("OutTime = %v", s.OutTime)
	}
	eta, ok := s.ETA(119.75)
	if !ok {
		t.Fatal("ETA unavailable")
	}
	secs := 59.875 / 0.994
	want := time.Duration(secs * float64(time.Second))
	if d := eta - want; d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("ETA = %v, want %v", eta, want)
	}
	if p := s.Percent(); math.Abs(p-50) > 1e-6 {
		t.Errorf("Percent = %v", p)
	}
}

func TestParseClock(t *testing.T) {
	d, ok := parseClock("01:02:03.500000")
	if !ok || d != time.Hour+2*time.Minute+3500*time.Millisecond {
		t.Fatalf("parseClock = %v, %v", d, ok)
	}
	if _, ok := parseClock("garbage"); ok {
		t.Fatal("garbage should not parse")
	}
}
