package encoder

import (
	"strconv"
	"strings"
	"time"
)

// Sample is one block of ffmpeg -progress output, emitted on each
// "progress=" line.
type Sample struct {
	OutTime   time.Duration
	Fraction  float64 // 0..1, or <0 when the duration is unknown
	Speed     float64 // realtime multiple, 0 when unknown
	FPS       float64
	Frame     int64
	TotalSize int64
	End       bool
}

// Percent is Fraction scaled to 0..100 (or -1 when unknown).
func (s Sample) Percent() float64 {
	if s.Fraction < 0 {
		return -1
	}
	return s.Fraction * 100
}

// ETA estimates the remaining wall time from the encode speed.
func (s Sample) ETA(durationSec float64) (time.Duration, bool) {
	if s.Speed <= 0 || durationSec <= 0 {
		return 0, false
	}
	remaining := durationSec - s.OutTime.Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining / s.Speed * float64(time.Second)), true
}

// ProgressState accumulates key=value lines between progress markers.
type ProgressState struct {
	outTimeUs int64
	speed     float64
	fps       float64
	frame     int64
	totalSize int64
}

// UpdateFromLine feeds one line of -progress output. It returns a Sample
// when the line closes a block ("progress=continue" or "progress=end").
func (ps *ProgressState) UpdateFromLine(line string, durationSec float64) (Sample, bool) {
	key, val, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Sample{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)
	if val == "N/A" {
		return Sample{}, false
	}

	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is also microseconds, a long-standing ffmpeg quirk.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			ps.outTimeUs = v
		}
	case "out_time":
		if d, ok := parseClock(val); ok && ps.outTimeUs == 0 {
			ps.outTimeUs = d.Microseconds()
		}
	case "speed":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(val, "x"), 64); err == nil {
			ps.speed = v
		}
	case "fps":
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			ps.fps = v
		}
	case "frame":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.frame = v
		}
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.totalSize = v
		}
	case "progress":
		s := Sample{
			OutTime:   time.Duration(ps.outTimeUs) * time.Microsecond,
			Fraction:  -1,
			Speed:     ps.speed,
			FPS:       ps.fps,
			Frame:     ps.frame,
			TotalSize: ps.totalSize,
			End:       val == "end",
		}
		if durationSec > 0 {
			s.Fraction = min(s.OutTime.Seconds()/durationSec, 1)
		}
		if s.End {
			s.Fraction = 1
		}
		return s, true
	}
	return Sample{}, false
}

// parseClock parses ffmpeg's HH:MM:SS.micro timestamps.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, false
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
	return total, true
}
