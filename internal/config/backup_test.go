package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_MissingFile(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), "none.yaml"))

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	// Given an existing config
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigFile)
	writeFile(t, path, "chunking:\n  size: 10\n")

	// When it is backed up
	backup, err := BackupFile(path)

	// Then the backup sits next to it with the same bytes
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(backup))
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "chunking:\n  size: 10\n", string(data))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Equal(t, []string{backup}, backups)
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	// Given more old backups than are kept
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigFile)
	writeFile(t, path, "version: 1\n")
	for _, ts := range []string{"20200101-000000.000", "20200102-000000.000", "20200103-000000.000", "20200104-000000.000"} {
		writeFile(t, path+BackupSuffix+"."+ts, "old\n")
	}

	// When a new backup is made
	backup, err := BackupFile(path)
	require.NoError(t, err)

	// Then only the newest MaxBackups remain
	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, backup, backups[0])
	assert.Equal(t, path+BackupSuffix+".20200104-000000.000", backups[1])
	assert.Equal(t, path+BackupSuffix+".20200103-000000.000", backups[2])
}

func TestListBackups_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, filepath.Join(dir, "other.yaml.bak.20200101-000000.000"), "x")
	writeFile(t, filepath.Join(dir, "config.yaml"), "x")

	backups, err := ListBackups(path)

	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "nope", "config.yaml"))

	require.NoError(t, err)
	assert.Nil(t, backups)
}
