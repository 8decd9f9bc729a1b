package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestDefaultLogPath(t *testing.T) {
	assert.Equal(t, "amanvis.log", filepath.Base(DefaultLogPath()))
	assert.Contains(t, DefaultLogDir(), ".amanvis")
}

func TestSetup_WritesJSONToFileAndStderr(t *testing.T) {
	// Given: file plus stderr logging at debug
	path := filepath.Join(t.TempDir(), "logs", "amanvis.log")
	stderr := &bytes.Buffer{}
	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: path, WriteToStderr: true, Stderr: stderr})
	require.NoError(t, err)

	// When: a record is logged
	logger.Debug("index_item_failed", slog.String("path", "/a.jpg"))
	cleanup()

	// Then: both sinks get the same JSON line
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stderr.String(), string(data))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "index_item_failed", rec["msg"])
	assert.Equal(t, "/a.jpg", rec["path"])
}

func TestSetup_LevelFilters(t *testing.T) {
	stderr := &bytes.Buffer{}
	logger, cleanup, err := Setup(Config{Level: "warn", WriteToStderr: true, Stderr: stderr})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
}

func TestSetup_NoSinks(t *testing.T) {
	logger, cleanup, err := Setup(Config{})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Error("dropped") })
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a 1 MB writer keeping two files
	path := filepath.Join(t.TempDir(), "amanvis.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	// When: four chunks just over half the limit are written
	chunk := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())

	// Then: the current file and two rotations exist, no third
	for _, p := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Equal(t, int64(len(chunk)), info.Size(), p)
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amanvis.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 0, 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}
