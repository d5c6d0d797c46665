package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"av1conv/internal/config"
)

// VideoExtensions are the source containers picked up by discovery.
var VideoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".m4v": true, ".mov": true, ".avi": true,
	".ts": true, ".m2ts": true, ".webm": true, ".wmv": true,
}

// IsVideoFile reports whether path has a known video extension.
func IsVideoFile(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// ErrOverwritesSource is returned when naming would target the input file.
var ErrOverwritesSource = errors.New("output path would overwrite the source")

// OutputPath derives the encoded file path for source: the source stem plus
// the configured suffix and container, either next to the source or in the
// output directory.
func OutputPath(source string, out config.OutputConfig) (string, error) {
	dir := filepath.Dir(source)
	if !out.SameDirectory {
		if out.OutputDirectory == "" {
			return "", errors.New("no output directory configured")
		}
		dir = out.OutputDirectory
	}
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := strings.TrimPrefix(out.Container, ".")
	if ext == "" {
		ext = "mkv"
	}
	p := filepath.Join(dir, fmt.Sprintf("%s%s.%s", stem, out.Suffix, ext))
	if samePath(p, source) {
		return "", fmt.Errorf("%w: %s", ErrOverwritesSource, source)
	}
	return p, nil
}

// IsOwnOutput reports whether path already looks like one of our outputs,
// so discovery does not queue it again.
func IsOwnOutput(path string, out config.OutputConfig) bool {
	if out.Suffix == "" {
		return false
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, out.Suffix) &&
		strings.EqualFold(strings.TrimPrefix(filepath.Ext(base), "."), out.Container)
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
