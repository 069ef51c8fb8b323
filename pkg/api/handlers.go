package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/imgsmith/imgsmith/pkg/domain"
	"github.com/imgsmith/imgsmith/pkg/imagegen"
	"github.com/imgsmith/imgsmith/pkg/session"
	"github.com/imgsmith/imgsmith/pkg/upload"
	"github.com/imgsmith/imgsmith/pkg/version"
)

// uploadedFileResponse is one file entry in the upload response.
type uploadedFileResponse struct {
	session.FileRecord
	SessionID string `json:"sessionId"`
}

// sessionResponse is the session object returned by the lifecycle
// endpoints.
type sessionResponse struct {
	session.Record
	TotalFiles int `json:"totalFiles"`
}

func newSessionResponse(rec session.Record) sessionResponse {
	return sessionResponse{Record: rec, TotalFiles: len(rec.UploadedFiles)}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleUpload ingests a multipart image batch into the session's
// current folder.
func (s *Server) handleUpload(c *gin.Context) {
	sessID, _ := sessionID(c)
	requestedFolder := strings.TrimSpace(c.GetHeader(FolderHeader))

	payloads, err := collectPayloads(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.ingestor.Ingest(sessID, requestedFolder, payloads)
	if err != nil {
		s.logger.Warn("upload rejected", "sessionId", sessID, "error", err)
		respondError(c, err)
		return
	}

	files := make([]uploadedFileResponse, 0, len(result.Records))
	for _, record := range result.Records {
		files = append(files, uploadedFileResponse{FileRecord: record, SessionID: sessID})
	}

	rec, _ := s.registry.Get(sessID)

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"files":               files,
		"uploadFolder":        result.Folder,
		"sessionId":           sessID,
		"totalFilesInSession": len(rec.UploadedFiles),
	})
}

// handleFetchSession is a pure read: it never creates a session.
func (s *Server) handleFetchSession(c *gin.Context) {
	sessID := strings.TrimSpace(c.GetHeader(SessionHeader))

	rec, found := s.registry.Get(sessID)
	if sessID == "" || !found {
		c.JSON(http.StatusOK, gin.H{"success": true, "session": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": newSessionResponse(rec)})
}

// handleRotateSession binds the session to a fresh folder; previously
// stored files stay on disk.
func (s *Server) handleRotateSession(c *gin.Context) {
	sessID, _ := sessionID(c)

	rec := s.registry.Rotate(sessID)

	c.JSON(http.StatusOK, gin.H{"success": true, "session": newSessionResponse(rec)})
}

// handleClearSession deletes the session's files and registry entry.
// Always succeeds from the caller's perspective; individual deletion
// failures are logged, not surfaced.
func (s *Server) handleClearSession(c *gin.Context) {
	sessID := strings.TrimSpace(c.GetHeader(SessionHeader))
	if sessID != "" {
		s.registry.Clear(sessID)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session cleared"})
}

// generateRequest is the body of POST /api/generate.
type generateRequest struct {
	Prompt           string `json:"prompt"`
	UseSessionImages bool   `json:"useSessionImages"`
}

// handleGenerate calls the image backend with the prompt and, when asked,
// the session's uploaded files as edit inputs.
func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewAppError(domain.ErrCodeBadRequest, "invalid request body").WithError(err))
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		respondError(c, domain.NewAppError(domain.ErrCodeValidation, "prompt is required"))
		return
	}

	var images []imagegen.InputImage
	if req.UseSessionImages {
		sessID := strings.TrimSpace(c.GetHeader(SessionHeader))
		images = s.loadSessionImages(sessID)
	}

	output, err := s.generator.Generate(c.Request.Context(), req.Prompt, images)
	if err != nil {
		s.logger.Error("image generation failed", "error", err)
		respondError(c, domain.NewAppError(domain.ErrCodeDependencyFailed, "image generation failed").WithError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"image": gin.H{
			"data":     base64.StdEncoding.EncodeToString(output.Data),
			"mimeType": output.MimeType,
		},
	})
}

// loadSessionImages reads the session's stored files back from disk.
// Unreadable files are skipped, not fatal.
func (s *Server) loadSessionImages(sessID string) []imagegen.InputImage {
	if sessID == "" {
		return nil
	}

	rec, found := s.registry.Get(sessID)
	if !found {
		return nil
	}

	images := make([]imagegen.InputImage, 0, len(rec.UploadedFiles))
	for _, file := range rec.UploadedFiles {
		content, err := afero.ReadFile(s.registry.Fs(), file.Path)
		if err != nil {
			s.logger.Warn("skipping unreadable session image", "path", file.Path, "error", err)
			continue
		}
		images = append(images, imagegen.InputImage{MimeType: file.MimeType, Data: content})
	}
	return images
}

// collectPayloads pulls file parts out of the multipart form. The
// canonical field is "images"; "file[]", "files", and "file" are
// accepted for compatibility, and any remaining file field is used as a
// last resort.
func collectPayloads(c *gin.Context) ([]upload.Payload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.NewAppError(domain.ErrCodeNoFiles, "no files uploaded").WithError(err)
	}

	for _, field := range []string{"images", "file[]", "files", "file"} {
		if headers := form.File[field]; len(headers) > 0 {
			return readFileHeaders(headers)
		}
	}

	for _, headers := range form.File {
		if len(headers) > 0 {
			return readFileHeaders(headers)
		}
	}

	return nil, domain.NewAppError(domain.ErrCodeNoFiles, "no files uploaded")
}

func readFileHeaders(headers []*multipart.FileHeader) ([]upload.Payload, error) {
	payloads := make([]upload.Payload, 0, len(headers))

	for _, header := range headers {
		payload, err := readFileHeader(header)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}

	return payloads, nil
}

func readFileHeader(header *multipart.FileHeader) (upload.Payload, error) {
	src, err := header.Open()
	if err != nil {
		return upload.Payload{}, domain.NewAppError(domain.ErrCodeInternal,
			fmt.Sprintf("unable to open uploaded file %s", header.Filename)).WithError(err)
	}
	defer func() {
		_ = src.Close()
	}()

	content, err := io.ReadAll(src)
	if err != nil {
		return upload.Payload{}, domain.NewAppError(domain.ErrCodeInternal,
			fmt.Sprintf("failed to read uploaded file %s", header.Filename)).WithError(err)
	}

	return upload.Payload{
		Name:     header.Filename,
		Content:  content,
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}
