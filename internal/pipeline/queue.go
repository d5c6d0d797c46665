package pipeline

import (
	"path/filepath"

	"github.com/google/uuid"

	"av1conv/internal/model"
)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// BuildQueue turns source paths into job items in the given order. Paths that
// resolve to the same file are coalesced into the first occurrence.
func BuildQueue(paths []string) []model.JobItem {
	seen := make(map[string]bool, len(paths))
	items := make([]model.JobItem, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		items = append(items, model.JobItem{ID: newID(), SourcePath: abs})
	}
	return items
}
