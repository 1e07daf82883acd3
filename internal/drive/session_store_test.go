package drive

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()

	return NewSessionStore(t.TempDir(), slog.Default())
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	rec := &SessionRecord{
		DriveID:    "d1",
		RemotePath: "p1/big.bin",
		SessionURL: "https://upload.example.com/session/xyz",
		FileSize:   983040,
	}

	require.NoError(t, store.Save(rec))
	assert.False(t, rec.CreatedAt.IsZero(), "Save stamps CreatedAt")

	loaded, err := store.Load("d1", "p1/big.bin")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rec.SessionURL, loaded.SessionURL)
	assert.Equal(t, rec.FileSize, loaded.FileSize)
}

func TestSessionStore_LoadAbsent(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Load("d1", "never/saved")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSessionStore_Delete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&SessionRecord{DriveID: "d1", RemotePath: "a/b"}))
	require.NoError(t, store.Delete("d1", "a/b"))

	rec, err := store.Load("d1", "a/b")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting again is not an error.
	require.NoError(t, store.Delete("d1", "a/b"))
}

func TestSessionStore_CorruptRecord(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&SessionRecord{DriveID: "d1", RemotePath: "a/b"}))

	path := store.filePath("d1", "a/b")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.Load("d1", "a/b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptSession)

	// The corrupt file was removed; the next load starts clean.
	rec, err := store.Load("d1", "a/b")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSessionStore_KeyingIsPairwiseDistinct(t *testing.T) {
	// The drive ID is length-prefixed in the key, so moving characters
	// across the delimiter must not collide.
	assert.NotEqual(t, sessionKey("d1", "a/b"), sessionKey("d1:a", "/b"))
	assert.NotEqual(t, sessionKey("d1", "a/b"), sessionKey("d1", "a/c"))
	assert.Equal(t, sessionKey("d1", "a/b"), sessionKey("d1", "a/b"))
}

func TestSessionStore_FilePerms(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&SessionRecord{DriveID: "d1", RemotePath: "a/b"}))

	info, err := os.Stat(store.filePath("d1", "a/b"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "records hold pre-authenticated URLs")

	dirInfo, err := os.Stat(store.dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestSessionStore_CleanStale(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&SessionRecord{DriveID: "d1", RemotePath: "old"}))
	require.NoError(t, store.Save(&SessionRecord{DriveID: "d1", RemotePath: "fresh"}))

	// Age the first record past the TTL via its mtime.
	oldPath := store.filePath("d1", "old")
	past := time.Now().Add(-StaleSessionAge - time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	n, err := store.CleanStale(StaleSessionAge)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.Load("d1", "old")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = store.Load("d1", "fresh")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestSessionStore_CleanStale_MissingDir(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "never-created"), slog.Default())

	n, err := store.CleanStale(StaleSessionAge)
	require.NoError(t, err)
	assert.Zero(t, n)
}
