package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "nested", "process.json"))

	want := &ProcessState{
		PID:          4242,
		State:        "running",
		StartedAt:    time.Now().Truncate(time.Second),
		JarPath:      "java -jar server.jar",
		WorkingDir:   "/srv/mc",
		RestartCount: 2,
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.PID, got.PID)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.JarPath, got.JarPath)
}

func TestLoadMissingFileReturnsNilNoError(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "absent.json"))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "process.json"))

	require.NoError(t, store.Save(&ProcessState{PID: 1, State: "running"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "process.json", entries[0].Name())
}

func TestClearRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "process.json")
	store := NewStore(path)

	require.NoError(t, store.Save(&ProcessState{PID: 1, State: "running"}))
	require.NoError(t, store.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Clear(), "expected Clear to be idempotent")
}
