package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/namespace"
)

// maxUploadBytes bounds a single multipart upload request.
const maxUploadBytes = 100 << 20

type namespaceCheckRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleNamespaceCheck(w http.ResponseWriter, r *http.Request) {
	var req namespaceCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	exists, err := s.registry.Exists(r.Context(), req.UserID)
	if err != nil {
		s.logger.Error("namespace check failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   req.UserID,
		"namespace": namespace.Derive(req.UserID),
		"exists":    exists,
	})
}

type uploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks,omitempty"`
	Pages    int    `json:"pages,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	userID := r.FormValue("user_id")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	tmpDir, err := os.MkdirTemp("", "kotae-upload-*")
	if err != nil {
		s.logger.Error("create upload dir failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(tmpDir)

	results := make([]uploadResult, 0, len(files))
	failed := 0
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		rec, err := s.ingestUpload(r, tmpDir, name, fh, userID)
		if err != nil {
			s.logger.Warn("upload failed", zap.String("file", name), zap.Error(err))
			results = append(results, uploadResult{Filename: name, Status: "failed", Error: err.Error()})
			failed++
			continue
		}
		results = append(results, uploadResult{
			Filename: name,
			Status:   "ingested",
			Chunks:   rec.ChunkCount,
			Pages:    rec.Pages,
		})
	}

	// No rollback: files that ingested stay ingested, but any failure fails
	// the call so the client knows to inspect the per-file results.
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusBadRequest
	}
	s.respondJSON(w, status, map[string]interface{}{
		"user_id":   userID,
		"namespace": namespace.Derive(userID),
		"results":   results,
	})
}

// ingestUpload stages one uploaded file on disk and runs it through the
// ingestion pipeline.
func (s *Server) ingestUpload(r *http.Request, tmpDir, name string, fh *multipart.FileHeader, userID string) (*models.DocumentRecord, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	path := filepath.Join(tmpDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, err
	}
	if err := dst.Close(); err != nil {
		return nil, err
	}
	return s.ingestor.Ingest(r.Context(), path, userID)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "document catalog not enabled")
		return
	}
	docs, err := s.catalog.ListDocuments(r.Context(), namespace.Derive(userID))
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"namespace": namespace.Derive(userID),
		"documents": docs,
	})
}

type queryRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("user_id", req.UserID))
	ans, err := s.engine.Ask(r.Context(), req.UserID, req.Question, req.TopK)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": ans.Text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{}

	if s.catalog != nil {
		docCount, err := s.catalog.CountDocuments(ctx)
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		chunkCount, err := s.catalog.CountChunks(ctx)
		if err != nil {
			s.logger.Error("status: count chunks failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["documents"] = docCount
		resp["chunks"] = chunkCount
	}

	resp["config"] = map[string]interface{}{
		"index_type":           s.config.Index.Type,
		"index_name":           s.config.Index.Name,
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"generation_model":     s.config.Generation.Model,
		"chunk_size":           s.config.Ingest.ChunkSize,
		"chunk_overlap":        s.config.Ingest.ChunkOverlap,
		"top_k":                s.config.Query.TopK,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrNoDocuments):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
