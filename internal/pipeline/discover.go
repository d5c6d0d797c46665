package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"av1conv/internal/config"
	"av1conv/internal/util/media"
)

// Discover expands the given paths into video files. Files are taken as-is;
// directories are scanned for known video extensions, descending into
// subdirectories when recursive is set. Files that already look like our own
// outputs are skipped. Results from each directory are sorted.
func Discover(paths []string, recursive bool, out config.OutputConfig) ([]string, error) {
	var files []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := scanDir(p, recursive, out)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func scanDir(root string, recursive bool, out config.OutputConfig) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !media.IsVideoFile(path) || media.IsOwnOutput(path, out) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}
