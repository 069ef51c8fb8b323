package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/imgsmith/imgsmith/pkg/logging"
)

// StoredFilePrefix is the canonical name prefix for files written into a
// session folder.
const StoredFilePrefix = "image_"

// FileRecord describes one stored upload.
type FileRecord struct {
	// Client-supplied filename, untrusted.
	OriginalName string `json:"originalName"`

	// Canonical name on disk, image_<n><ext>.
	StoredName string `json:"filename"`

	// Full path under the upload root.
	Path string `json:"path"`

	// Size in bytes as reported by the transport.
	Size int64 `json:"size"`

	// MIME type, always image/*.
	MimeType string `json:"mimetype"`

	// Folder that was current when the file was uploaded. A session can
	// span several folders across rotations; records are never repointed.
	Folder string `json:"uploadFolder"`
}

// Record is the in-memory state of one session.
type Record struct {
	SessionID     string       `json:"sessionId"`
	CurrentFolder string       `json:"currentFolder"`
	UploadedFiles []FileRecord `json:"uploadedFiles"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastActivity  time.Time    `json:"lastActivity"`

	// Next sequence number for stored file names in the current folder.
	// Zero means not yet derived; the registry falls back to a directory
	// scan in that case.
	nextSeq int
}

// Registry maps client-supplied session IDs to session state. Session IDs
// are an unauthenticated routing key, never an authorization credential.
// All access is serialized through one mutex; the reaper shares it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Record

	fs     afero.Fs
	root   string
	logger *logging.Logger

	// Injectable clock for tests.
	now func() time.Time
}

// NewRegistry creates an empty registry storing files under root.
func NewRegistry(fs afero.Fs, root string, logger *logging.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Record),
		fs:       fs,
		root:     root,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the registry clock. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Fs returns the filesystem the registry stores files on.
func (r *Registry) Fs() afero.Fs {
	return r.fs
}

// FolderPath returns the on-disk path for a session folder name.
func (r *Registry) FolderPath(folder string) string {
	return filepath.Join(r.root, folder)
}

// GetOrCreate returns the record for sessionID, creating it lazily. A new
// record uses requestedFolder when given, otherwise a fresh timestamp
// folder. LastActivity is bumped on every call, existing or not.
func (r *Registry) GetOrCreate(sessionID, requestedFolder string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(sessionID, requestedFolder)
}

func (r *Registry) getOrCreateLocked(sessionID, requestedFolder string) Record {
	now := r.now()

	rec, exists := r.sessions[sessionID]
	if !exists {
		folder := requestedFolder
		if folder == "" {
			folder = NewFolderName(now)
		}
		rec = &Record{
			SessionID:     sessionID,
			CurrentFolder: folder,
			UploadedFiles: []FileRecord{},
			CreatedAt:     now,
		}
		r.sessions[sessionID] = rec
		r.logger.Debug("session created", "sessionId", sessionID, "folder", folder)
	}

	rec.LastActivity = now
	return snapshot(rec)
}

// Get looks up a session without creating it and without bumping
// LastActivity.
func (r *Registry) Get(sessionID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.sessions[sessionID]
	if !exists {
		return Record{}, false
	}
	return snapshot(rec), true
}

// Delete removes the registry entry. Absent entries are fine.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Rotate discards the session's registry entry and binds a fresh folder.
// Files stored under previous folders stay on disk, orphaned.
func (r *Registry) Rotate(sessionID string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	rec := r.getOrCreateLocked(sessionID, "")
	r.logger.Info("session rotated", "sessionId", sessionID, "folder", rec.CurrentFolder)
	return rec
}

// Clear deletes the files in the session's current folder, then the
// folder, then the registry entry. File deletion is best effort: failures
// are logged, the entry is removed regardless.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.sessions[sessionID]
	if exists {
		r.removeFolderLocked(rec.CurrentFolder)
	}
	delete(r.sessions, sessionID)
}

func (r *Registry) removeFolderLocked(folder string) {
	dir := r.FolderPath(folder)

	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		r.logger.Warn("failed to read session folder for cleanup", "folder", folder, "error", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := r.fs.Remove(filepath.Join(dir, entry.Name())); err != nil {
			r.logger.Warn("failed to delete session file", "file", entry.Name(), "error", err)
		}
	}

	if err := r.fs.RemoveAll(dir); err != nil {
		r.logger.Warn("failed to remove session folder", "folder", folder, "error", err)
	}
}

// SweepIdle evicts entries whose last activity is older than maxIdle and
// returns the eviction count. Files are left on disk: the sweep is a
// memory-pressure release, not storage reclamation.
func (r *Registry) SweepIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	evicted := 0

	for sessionID, rec := range r.sessions {
		if rec.LastActivity.Before(cutoff) {
			delete(r.sessions, sessionID)
			evicted++
		}
	}

	if evicted > 0 {
		r.logger.Info("idle sessions evicted", "count", evicted)
	}
	return evicted
}

// NextSequence hands out the next stored-file number for the session's
// current folder. On cold start (counter not yet derived) it counts the
// image_ files already present in the folder.
func (r *Registry) NextSequence(sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.sessions[sessionID]
	if !exists {
		return 0, fmt.Errorf("unknown session %q", sessionID)
	}

	if rec.nextSeq == 0 {
		count, err := r.countStoredFiles(rec.CurrentFolder)
		if err != nil {
			return 0, err
		}
		rec.nextSeq = count + 1
	}

	n := rec.nextSeq
	rec.nextSeq++
	return n, nil
}

func (r *Registry) countStoredFiles(folder string) (int, error) {
	dir := r.FolderPath(folder)

	exists, err := afero.DirExists(r.fs, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat session folder: %w", err)
	}
	if !exists {
		return 0, nil
	}

	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read session folder: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), StoredFilePrefix) {
			count++
		}
	}
	return count, nil
}

// AppendFile records a stored upload and bumps LastActivity.
func (r *Registry) AppendFile(sessionID string, file FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.sessions[sessionID]
	if !exists {
		return fmt.Errorf("unknown session %q", sessionID)
	}

	rec.UploadedFiles = append(rec.UploadedFiles, file)
	rec.LastActivity = r.now()
	return nil
}

// Len returns the number of live registry entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// snapshot copies a record so callers never share the registry's mutable
// state.
func snapshot(rec *Record) Record {
	out := *rec
	out.UploadedFiles = make([]FileRecord, len(rec.UploadedFiles))
	copy(out.UploadedFiles, rec.UploadedFiles)
	return out
}
