package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_MissingFile(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), ".amanvis.yaml"))

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	// Given: an existing config
	path := filepath.Join(t.TempDir(), ".amanvis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	// When: backed up
	backup, err := BackupFile(path)

	// Then: the copy has the same bytes
	require.NoError(t, err)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	// Given: more stale backups than are kept
	dir := t.TempDir()
	path := filepath.Join(dir, ".amanvis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	for _, stamp := range []string{"20200101-000000.000", "20200102-000000.000", "20200103-000000.000", "20200104-000000.000"} {
		require.NoError(t, os.WriteFile(path+BackupSuffix+"."+stamp, []byte("old"), 0o644))
	}

	// When: a new backup is taken
	newest, err := BackupFile(path)
	require.NoError(t, err)

	// Then: only MaxBackups remain, newest first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, newest, backups[0])
	assert.NotContains(t, backups, path+BackupSuffix+".20200101-000000.000")
}
