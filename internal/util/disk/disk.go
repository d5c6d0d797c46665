package disk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
)

// Free returns the bytes available to the current user on the filesystem
// holding path. A missing path is resolved to its nearest existing parent.
func Free(path string) (uint64, error) {
	p := existingParent(path)
	u, err := disk.Usage(p)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", p, err)
	}
	return u.Free, nil
}

// HasRoom reports whether dir can hold need more bytes. When usage cannot be
// read it returns true with the error, so callers may log and proceed.
func HasRoom(dir string, need int64) (bool, uint64, error) {
	free, err := Free(dir)
	if err != nil {
		return true, 0, err
	}
	return need <= 0 || free >= uint64(need), free, nil
}

func existingParent(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
