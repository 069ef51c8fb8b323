package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/imgsmith/imgsmith/pkg/domain"
	"github.com/imgsmith/imgsmith/pkg/logging"
	"github.com/imgsmith/imgsmith/pkg/session"
)

const (
	// MaxFileSize is the per-file size limit (10 MiB).
	MaxFileSize = 10 * 1024 * 1024

	// MaxBatchFiles is the per-request file count limit.
	MaxBatchFiles = 20
)

// Payload is one binary file from an upload request.
type Payload struct {
	Name     string
	Content  []byte
	MimeType string // as reported by the transport; sniffed when empty
}

// Result is what one ingest call produced.
type Result struct {
	Folder  string
	Records []session.FileRecord
}

// Ingestor persists upload batches into a session's current folder.
type Ingestor struct {
	registry *session.Registry
	logger   *logging.Logger
}

// NewIngestor creates an ingestor backed by the given registry.
func NewIngestor(registry *session.Registry, logger *logging.Logger) *Ingestor {
	return &Ingestor{registry: registry, logger: logger}
}

// Ingest validates the whole batch, then stores each file in request
// order under image_<n><ext> and appends its record to the session.
// Validation failures reject the entire batch before anything is
// written; disk failures surface as internal errors with no cleanup of
// files already written.
func (in *Ingestor) Ingest(sessionID, requestedFolder string, files []Payload) (*Result, error) {
	if err := validateBatch(files); err != nil {
		return nil, err
	}

	rec := in.registry.GetOrCreate(sessionID, requestedFolder)

	dir := in.registry.FolderPath(rec.CurrentFolder)
	if err := in.registry.Fs().MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewAppError(domain.ErrCodeInternal, "unable to create upload directory").WithError(err)
	}

	result := &Result{Folder: rec.CurrentFolder, Records: make([]session.FileRecord, 0, len(files))}

	for _, payload := range files {
		record, err := in.storeFile(sessionID, rec.CurrentFolder, payload)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, record)
	}

	in.logger.Info("upload batch stored",
		"sessionId", sessionID,
		"folder", rec.CurrentFolder,
		"files", len(result.Records))

	return result, nil
}

func (in *Ingestor) storeFile(sessionID, folder string, payload Payload) (session.FileRecord, error) {
	seq, err := in.registry.NextSequence(sessionID)
	if err != nil {
		return session.FileRecord{}, domain.NewAppError(domain.ErrCodeInternal, "failed to assign file number").WithError(err)
	}

	storedName := fmt.Sprintf("%s%d%s", session.StoredFilePrefix, seq, extensionFor(payload))
	path := filepath.Join(in.registry.FolderPath(folder), storedName)

	if err := afero.WriteFile(in.registry.Fs(), path, payload.Content, 0o644); err != nil {
		return session.FileRecord{}, domain.NewAppError(domain.ErrCodeInternal, "failed to save file").
			WithDetails("filename", payload.Name).
			WithError(err)
	}

	record := session.FileRecord{
		OriginalName: payload.Name,
		StoredName:   storedName,
		Path:         path,
		Size:         int64(len(payload.Content)),
		MimeType:     effectiveMimeType(payload),
		Folder:       folder,
	}

	if err := in.registry.AppendFile(sessionID, record); err != nil {
		return session.FileRecord{}, domain.NewAppError(domain.ErrCodeInternal, "failed to record file").WithError(err)
	}

	return record, nil
}

// validateBatch applies the count, size, and MIME checks before any file
// is written, so a bad batch never leaves partial state behind.
func validateBatch(files []Payload) error {
	if len(files) == 0 {
		return domain.NewAppError(domain.ErrCodeNoFiles, "no files uploaded")
	}

	if len(files) > MaxBatchFiles {
		return domain.NewAppError(domain.ErrCodeTooManyFiles,
			fmt.Sprintf("too many files: %d (max %d)", len(files), MaxBatchFiles)).
			WithDetails("count", len(files))
	}

	for _, payload := range files {
		if int64(len(payload.Content)) > MaxFileSize {
			return domain.NewAppError(domain.ErrCodeFileTooLarge,
				fmt.Sprintf("file too large: %s is %s (max %s)",
					payload.Name,
					humanize.IBytes(uint64(len(payload.Content))),
					humanize.IBytes(MaxFileSize))).
				WithDetails("filename", payload.Name).
				WithDetails("size", len(payload.Content))
		}

		if !strings.HasPrefix(effectiveMimeType(payload), "image/") {
			return domain.NewAppError(domain.ErrCodeInvalidFileType,
				fmt.Sprintf("only image files are allowed, got %q for %s", effectiveMimeType(payload), payload.Name)).
				WithDetails("filename", payload.Name)
		}
	}

	return nil
}

// effectiveMimeType returns the transport-reported type, sniffing the
// content when the transport did not say anything useful.
func effectiveMimeType(payload Payload) string {
	if payload.MimeType != "" && payload.MimeType != "application/octet-stream" {
		return payload.MimeType
	}
	return mimetype.Detect(payload.Content).String()
}

// extensionFor picks the stored-file extension: the original one when
// present, otherwise one derived from the sniffed content type.
func extensionFor(payload Payload) string {
	if ext := filepath.Ext(payload.Name); ext != "" {
		return ext
	}
	return mimetype.Detect(payload.Content).Extension()
}
