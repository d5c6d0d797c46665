package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"av1conv/internal/config"
)

func TestTextToConsole(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(config.LogConfig{Level: "info", Format: "text"}, Options{Console: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.Debug("hidden")
	log.WithField("job", "j1").Info("encode completed")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "encode completed")
	assert.Contains(t, buf.String(), "job=j1")
}

func TestVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(config.LogConfig{Level: "warn", Format: "text"}, Options{Console: &buf, Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.Debug("probe args")
	assert.Contains(t, buf.String(), "logging_test.go:")
}

func TestJSONToFileOnly(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "av1conv.log")
	log, closeFn, err := New(config.LogConfig{Level: "info", Format: "json", File: file}, Options{Console: &console, Quiet: true})
	require.NoError(t, err)
	log.WithField("path", "/m/a.mkv").Warn("source kept")
	require.NoError(t, closeFn())

	assert.Empty(t, console.String())
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "source kept", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "/m/a.mkv", entry["path"])
}

func TestBadLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud"}, Options{})
	assert.Error(t, err)
}
