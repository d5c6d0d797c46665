package vmaf

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
)

var errNoScore = errors.New("no VMAF score in output")

type logFile struct {
	PooledMetrics struct {
		VMAF *struct {
			Min  float64 `json:"min"`
			Max  float64 `json:"max"`
			Mean float64 `json:"mean"`
		} `json:"vmaf"`
	} `json:"pooled_metrics"`
}

// Pooled is the pooled VMAF statistic set from one run.
type Pooled struct {
	Mean, Min, Max float64
}

// ParseLog reads the libvmaf JSON log (log_fmt=json).
func ParseLog(data []byte) (Pooled, error) {
	var lf logFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return Pooled{}, err
	}
	v := lf.PooledMetrics.VMAF
	if v == nil {
		return Pooled{}, errNoScore
	}
	return Pooled{Mean: v.Mean, Min: v.Min, Max: v.Max}, nil
}

// "[Parsed_libvmaf_4 @ 0x55d0c8a1b2c0] VMAF score: 93.421575"
var stderrScoreRe = regexp.MustCompile(`VMAF score[:=]\s*([0-9]+(?:\.[0-9]+)?)`)

// ParseStderr extracts the summary score libvmaf prints at the end of a run.
func ParseStderr(text string) (float64, error) {
	m := stderrScoreRe.FindAllStringSubmatch(text, -1)
	if len(m) == 0 {
		return 0, errNoScore
	}
	return strconv.ParseFloat(m[len(m)-1][1], 64)
}

// Grade maps a score to the label shown in summaries.
func Grade(score float64) string {
	switch {
	case score >= 95:
		return "Excellent"
	case score >= 90:
		return "Very Good"
	case score >= 80:
		return "Good"
	case score >= 70:
		return "Fair"
	case score >= 60:
		return "Poor"
	default:
		return "Bad"
	}
}
