package drive

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCorruptSession is returned when a session record cannot be parsed.
// The corrupt file is deleted so the next attempt starts clean.
var ErrCorruptSession = errors.New("drive: corrupt session record")

// Session records contain pre-authenticated upload URLs, so files and the
// directory holding them are owner-only.
const (
	sessionSubdir    = "upload-sessions"
	sessionFilePerms = 0o600
	sessionDirPerms  = 0o700
)

// StaleSessionAge is the TTL for persisted session records. Server sessions
// expire within a couple of days; a week covers clock skew generously.
const StaleSessionAge = 7 * 24 * time.Hour

// cleanThrottle caps how often Save triggers a stale-record sweep.
const cleanThrottle = 1 * time.Hour

// SessionRecord is the on-disk JSON shape of a persisted upload session.
// It is the extension point for resume-after-restart: the engine persists
// and deletes records, but reconstructing an Upload from one is a caller
// decision, never automatic.
type SessionRecord struct {
	DriveID    string    `json:"drive_id"`
	RemotePath string    `json:"remote_path"`
	SessionURL string    `json:"session_url"`
	FileSize   int64     `json:"file_size"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionStore persists upload session records as one JSON file per session,
// keyed by a hash of (drive ID, remote path). Safe for concurrent
// Save/Load/Delete.
type SessionStore struct {
	dir    string
	logger *slog.Logger

	cleanMu   sync.Mutex
	lastClean time.Time
}

// NewSessionStore creates a store rooted at dataDir/upload-sessions.
func NewSessionStore(dataDir string, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionStore{
		dir:    filepath.Join(dataDir, sessionSubdir),
		logger: logger,
	}
}

// Load reads the record for (driveID, remotePath). Returns (nil, nil) when
// no record exists.
func (s *SessionStore) Load(driveID, remotePath string) (*SessionRecord, error) {
	path := s.filePath(driveID, remotePath)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil //nolint:nilnil // sentinel for "not found"
		}

		return nil, fmt.Errorf("reading session record: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("corrupt session record, deleting",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("failed to remove corrupt session record",
				slog.String("path", path),
				slog.String("error", rmErr.Error()),
			)
		}

		return nil, fmt.Errorf("%w: %w", ErrCorruptSession, err)
	}

	return &rec, nil
}

// Save persists a record atomically, creating the directory if needed, and
// lazily sweeps stale records (throttled).
func (s *SessionStore) Save(rec *SessionRecord) error {
	if err := os.MkdirAll(s.dir, sessionDirPerms); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling session record: %w", err)
	}

	path := s.filePath(rec.DriveID, rec.RemotePath)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, sessionFilePerms); err != nil {
		return fmt.Errorf("writing session temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // best-effort cleanup
		return fmt.Errorf("renaming session temp file: %w", err)
	}

	s.cleanMu.Lock()
	due := time.Since(s.lastClean) >= cleanThrottle
	s.cleanMu.Unlock()

	if due {
		go s.cleanIfDue()
	}

	return nil
}

// Delete removes the record for (driveID, remotePath). Absent records are
// not an error.
func (s *SessionStore) Delete(driveID, remotePath string) error {
	if err := os.Remove(s.filePath(driveID, remotePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting session record: %w", err)
	}

	return nil
}

// CleanStale removes records older than maxAge and reports how many were
// deleted. Safe to call concurrently.
func (s *SessionStore) CleanStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("reading session dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.dir, e.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to clean stale session record",
					slog.String("file", e.Name()),
					slog.String("error", err.Error()),
				)

				continue
			}

			deleted++
		}
	}

	return deleted, nil
}

// cleanIfDue runs CleanStale if the throttle interval has elapsed. Runs in
// a goroutine from Save, so it recovers panics rather than crashing the
// process.
func (s *SessionStore) cleanIfDue() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in session record cleanup", slog.Any("panic", r))
		}
	}()

	s.cleanMu.Lock()
	if time.Since(s.lastClean) < cleanThrottle {
		s.cleanMu.Unlock()
		return
	}

	s.lastClean = time.Now()
	s.cleanMu.Unlock()

	n, err := s.CleanStale(StaleSessionAge)
	if err != nil {
		s.logger.Warn("stale session cleanup failed", slog.String("error", err.Error()))
		return
	}

	if n > 0 {
		s.logger.Info("cleaned stale upload session records", slog.Int("count", n))
	}
}

// sessionKey produces a deterministic filename for a (driveID, remotePath)
// pair. The drive ID is length-prefixed so delimiter ambiguity cannot make
// two distinct pairs collide.
func sessionKey(driveID, remotePath string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%d:%s:%s", len(driveID), driveID, remotePath))
	return fmt.Sprintf("%x.json", h)
}

func (s *SessionStore) filePath(driveID, remotePath string) string {
	return filepath.Join(s.dir, sessionKey(driveID, remotePath))
}
