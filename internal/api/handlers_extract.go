package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/parser"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/pipeline"
)

// handleExtract runs extraction and recognition within the request.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	res, err := s.worker.Run(r.Context(), bytes.NewReader(data), filename)
	if err != nil {
		s.writeFailure(w, filename, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"filename":      filename,
		"entities":      res.Entities,
		"words":         res.Words,
		"labeled_words": res.LabeledWords,
		"truncated":     res.Truncated,
	})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	job := pipeline.NewJob(filename, data)
	noteJob(r, job.ID)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// readUpload reads the multipart "file" field. On failure it has already
// written the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return "", nil, false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusUnsupportedMediaType)
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	if len(data) == 0 {
		jsonError(w, "file is empty", http.StatusBadRequest)
		return "", nil, false
	}
	noteUpload(r, filename, len(data))
	return filename, data, true
}

// writeFailure reports a processing error. Model and internal failures are
// logged in full; the client only sees the classified message.
func (s *Server) writeFailure(w http.ResponseWriter, filename string, err error) {
	f := pipeline.Classify(err)
	code := statusFor(f.Kind)
	if code >= 500 {
		s.log.Error("extraction failed", "filename", filename, "kind", f.Kind, "error", err)
	} else {
		s.log.Info("document rejected", "filename", filename, "kind", f.Kind, "error", err)
	}
	writeJSON(w, code, map[string]any{
		"error":     f.Message,
		"kind":      f.Kind,
		"retryable": f.Retryable,
	})
}

func statusFor(kind pipeline.ErrorKind) int {
	switch kind {
	case pipeline.KindUnsupported:
		return http.StatusUnsupportedMediaType
	case pipeline.KindBadInput:
		return http.StatusUnprocessableEntity
	case pipeline.KindUnavailable, pipeline.KindQueueFull:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
