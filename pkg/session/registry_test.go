package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgsmith/imgsmith/pkg/logging"
)

func newTestRegistry(t *testing.T) (*Registry, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewRegistry(fs, "uploads", logging.NewTestLogger()), fs
}

func TestGetOrCreateNewSession(t *testing.T) {
	registry, _ := newTestRegistry(t)

	rec := registry.GetOrCreate("sess-1", "")
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.NotEmpty(t, rec.CurrentFolder)
	assert.Empty(t, rec.UploadedFiles)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.LastActivity.IsZero())
}

func TestGetOrCreateHonorsRequestedFolder(t *testing.T) {
	registry, _ := newTestRegistry(t)

	rec := registry.GetOrCreate("sess-1", "2025-01-01 00:00:00:000")
	assert.Equal(t, "2025-01-01 00:00:00:000", rec.CurrentFolder)

	// Requested folder is only applied on creation.
	rec = registry.GetOrCreate("sess-1", "some-other-folder")
	assert.Equal(t, "2025-01-01 00:00:00:000", rec.CurrentFolder)
}

func TestGetOrCreateBumpsLastActivity(t *testing.T) {
	registry, _ := newTestRegistry(t)

	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	registry.SetClock(func() time.Time { return now })

	first := registry.GetOrCreate("sess-1", "")

	now = now.Add(time.Minute)
	second := registry.GetOrCreate("sess-1", "")

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.LastActivity.After(first.LastActivity))
}

func TestGetDoesNotCreateOrBump(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, found := registry.Get("missing")
	assert.False(t, found)
	assert.Zero(t, registry.Len())

	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	registry.SetClock(func() time.Time { return now })
	registry.GetOrCreate("sess-1", "")

	now = now.Add(time.Hour)
	rec, found := registry.Get("sess-1")
	require.True(t, found)
	assert.Equal(t, now.Add(-time.Hour), rec.LastActivity)
}

func TestGetIsIdempotent(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.GetOrCreate("sess-1", "")
	require.NoError(t, registry.AppendFile("sess-1", FileRecord{StoredName: "image_1.png"}))

	first, found := registry.Get("sess-1")
	require.True(t, found)
	second, found := registry.Get("sess-1")
	require.True(t, found)

	assert.Equal(t, first.UploadedFiles, second.UploadedFiles)
	assert.Equal(t, first.CurrentFolder, second.CurrentFolder)
	assert.Equal(t, first.LastActivity, second.LastActivity)
}

func TestSnapshotIsolation(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.GetOrCreate("sess-1", "")

	rec, _ := registry.Get("sess-1")
	rec.UploadedFiles = append(rec.UploadedFiles, FileRecord{StoredName: "image_9.png"})

	fresh, _ := registry.Get("sess-1")
	assert.Empty(t, fresh.UploadedFiles)
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.Delete("never-existed")
	assert.Zero(t, registry.Len())
}

func TestRotateLeavesFilesOnDisk(t *testing.T) {
	registry, fs := newTestRegistry(t)

	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	registry.SetClock(func() time.Time { return now })

	rec := registry.GetOrCreate("sess-1", "")
	oldDir := registry.FolderPath(rec.CurrentFolder)
	oldFile := filepath.Join(oldDir, "image_1.png")
	require.NoError(t, fs.MkdirAll(oldDir, 0o755))
	require.NoError(t, afero.WriteFile(fs, oldFile, []byte("png"), 0o644))
	require.NoError(t, registry.AppendFile("sess-1", FileRecord{StoredName: "image_1.png", Folder: rec.CurrentFolder}))

	now = now.Add(5 * time.Millisecond)
	rotated := registry.Rotate("sess-1")

	assert.NotEqual(t, rec.CurrentFolder, rotated.CurrentFolder)
	assert.Empty(t, rotated.UploadedFiles)

	// Old folder is orphaned, not deleted.
	exists, err := afero.Exists(fs, oldFile)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClearRemovesFilesAndEntry(t *testing.T) {
	registry, fs := newTestRegistry(t)

	rec := registry.GetOrCreate("sess-1", "")
	dir := registry.FolderPath(rec.CurrentFolder)
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "image_1.png"), []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "image_2.png"), []byte("b"), 0o644))

	registry.Clear("sess-1")

	exists, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	assert.False(t, exists)

	_, found := registry.Get("sess-1")
	assert.False(t, found)
}

func TestClearRemovesEntryEvenWithoutFolder(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.GetOrCreate("sess-1", "")

	// Folder was never created on disk; clear still drops the entry.
	registry.Clear("sess-1")
	_, found := registry.Get("sess-1")
	assert.False(t, found)
}

func TestSweepIdle(t *testing.T) {
	registry, _ := newTestRegistry(t)

	now := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	registry.SetClock(func() time.Time { return now.Add(-25 * time.Hour) })
	registry.GetOrCreate("stale", "")

	registry.SetClock(func() time.Time { return now.Add(-23 * time.Hour) })
	registry.GetOrCreate("fresh", "")

	registry.SetClock(func() time.Time { return now })
	evicted := registry.SweepIdle(24 * time.Hour)

	assert.Equal(t, 1, evicted)
	_, found := registry.Get("stale")
	assert.False(t, found)
	_, found = registry.Get("fresh")
	assert.True(t, found)
}

func TestSweepIdleLeavesFilesOnDisk(t *testing.T) {
	registry, fs := newTestRegistry(t)

	now := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	registry.SetClock(func() time.Time { return now.Add(-25 * time.Hour) })
	rec := registry.GetOrCreate("stale", "")

	dir := registry.FolderPath(rec.CurrentFolder)
	file := filepath.Join(dir, "image_1.png")
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, file, []byte("png"), 0o644))

	registry.SetClock(func() time.Time { return now })
	assert.Equal(t, 1, registry.SweepIdle(24*time.Hour))

	exists, err := afero.Exists(fs, file)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNextSequence(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.GetOrCreate("sess-1", "")

	for want := 1; want <= 3; want++ {
		n, err := registry.NextSequence("sess-1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestNextSequenceColdStartScansFolder(t *testing.T) {
	registry, fs := newTestRegistry(t)

	rec := registry.GetOrCreate("sess-1", "")
	dir := registry.FolderPath(rec.CurrentFolder)
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "image_1.png"), []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "image_2.jpg"), []byte("b"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "notes.txt"), []byte("c"), 0o644))

	n, err := registry.NextSequence("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNextSequenceUnknownSession(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.NextSequence("missing")
	assert.Error(t, err)
}

func TestAppendFileUnknownSession(t *testing.T) {
	registry, _ := newTestRegistry(t)
	err := registry.AppendFile("missing", FileRecord{})
	assert.Error(t, err)
}
