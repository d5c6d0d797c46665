package format

import (
	"fmt"
	"strconv"
	"time"
)

// HumanizeBytes converts a byte count into a human-readable string (e.g.,
// "1.5 MB"). Negative counts keep their sign.
func HumanizeBytes(b int64) string {
	if b < 0 {
		return "-" + HumanizeBytes(-b)
	}
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit && exp < 3; n /= unit {
		div *= unit
		exp++
	}
	frac := float64(b) / float64(div)
	return strconv.FormatFloat(frac, 'f', 1, 64) + " " + []string{"KB", "MB", "GB", "TB"}[exp]
}

// Duration renders d as 1h02m03s, 4m05s or 12s.
func Duration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// SizeChange renders the relative size change, e.g. "-62.5%".
func SizeChange(before, after int64) string {
	if before <= 0 {
		return "n/a"
	}
	pct := (float64(after) - float64(before)) / float64(before) * 100
	return fmt.Sprintf("%+.1f%%", pct)
}
