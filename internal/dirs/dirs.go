package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "av1conv"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// xdg resolves a per-user directory: $env/av1conv on Linux when set,
// otherwise home/linuxRel/av1conv, macOS under ~/Library/darwinRel, and the
// fallback function's directory elsewhere.
func xdg(env, linuxRel, darwinRel string, fallback func() (string, error)) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", darwinRel, AppName()), nil
	case "linux":
		if v := os.Getenv(env); v != "" {
			return filepath.Join(v, AppName()), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, linuxRel, AppName()), nil
	default:
		base, err := fallback()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, AppName()), nil
	}
}

// ConfigDir returns where config.yaml is searched.
// - Linux: $XDG_CONFIG_HOME/av1conv or ~/.config/av1conv
// - macOS: ~/Library/Application Support/av1conv
func ConfigDir() (string, error) {
	return xdg("XDG_CONFIG_HOME", ".config", "Application Support", os.UserConfigDir)
}

// DataDir holds the run history database.
// - Linux: $XDG_DATA_HOME/av1conv or ~/.local/share/av1conv
func DataDir() (string, error) {
	return xdg("XDG_DATA_HOME", filepath.Join(".local", "share"), "Application Support", os.UserConfigDir)
}

// CacheDir holds scratch files such as VMAF logs.
func CacheDir() (string, error) {
	return xdg("XDG_CACHE_HOME", ".cache", "Caches", os.UserCacheDir)
}

// HistoryPath is the default SQLite history database location.
func HistoryPath() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "history.db"), nil
}

// ScratchDir is the base for per-run temporary files.
func ScratchDir() (string, error) {
	c, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(c, "scratch"), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll ensures config, data, and cache dirs exist.
func EnsureAll() error {
	for _, f := range []func() (string, error){ConfigDir, DataDir, CacheDir} {
		p, err := f()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
