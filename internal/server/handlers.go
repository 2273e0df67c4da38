package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
	"github.com/p-n-ai/exam-analyzer/internal/extract"
	"github.com/p-n-ai/exam-analyzer/internal/jobs"
	"github.com/p-n-ai/exam-analyzer/internal/pipeline"
)

const (
	multipartMemory = 32 << 20
	checkTimeout    = 2 * time.Second
)

var contentTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type analyzeResponse struct {
	*pipeline.Outcome
	DocxURL string `json:"docx_url"`
	XlsxURL string `json:"xlsx_url"`
}

type failedResponse struct {
	Status         string  `json:"status"`
	Error          string  `json:"error"`
	JobID          string  `json:"job_id,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondFailed(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("PDF exceeds the %d MB upload limit", s.maxUpload>>20), "", start)
			return
		}
		respondFailed(w, http.StatusBadRequest, "No PDF file uploaded", "", start)
		return
	}

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		respondFailed(w, http.StatusBadRequest, "No PDF file uploaded", "", start)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		respondFailed(w, http.StatusBadRequest, "Only PDF files allowed", "", start)
		return
	}

	mode := extract.Mode(strings.ToLower(strings.TrimSpace(r.FormValue("mode"))))
	if mode != "" && mode != extract.ModeVision && mode != extract.ModeText {
		respondFailed(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode), "", start)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondFailed(w, http.StatusBadRequest, "could not read uploaded PDF", "", start)
		return
	}

	up := pipeline.Upload{
		Filename: header.Filename,
		Data:     data,
		Model:    strings.TrimSpace(r.FormValue("model_id")),
		Mode:     mode,
		ExamType: exam.ParseType(r.FormValue("exam_type")),
		Subject:  exam.ParseSubject(r.FormValue("subject")),
		UploadID: r.FormValue("upload_id"),
	}

	out, err := s.pipeline.Run(r.Context(), up)
	if err != nil {
		var jobErr *pipeline.JobError
		jobID := ""
		if errors.As(err, &jobErr) {
			jobID = jobErr.JobID
			err = jobErr.Err
		}
		respondFailed(w, http.StatusInternalServerError, err.Error(), jobID, start)
		return
	}

	respondJSON(w, http.StatusOK, analyzeResponse{
		Outcome: out,
		DocxURL: "/download/" + out.DocxFile,
		XlsxURL: "/download/" + out.XlsxFile,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !safeFilename(name) {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(filepath.Join(s.outputDir, name))
	if err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// safeFilename accepts a bare file name that cannot leave the output dir.
func safeFilename(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"models": s.models})
}

func (s *Server) handleReferenceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.referenceStats(r.Context())
	if err != nil {
		slog.Error("reference stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reference_data": stats})
}

func (s *Server) referenceStats(ctx context.Context) (any, error) {
	if s.references == nil {
		return []any{}, nil
	}
	stats, err := s.references.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		respondError(w, http.StatusNotImplemented, "job lookup not enabled")
		return
	}
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		slog.Error("job lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth is the liveness report with reference data attached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if stats, err := s.referenceStats(r.Context()); err != nil {
		slog.Warn("reference stats unavailable", "error", err)
	} else {
		resp["reference_data"] = stats
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	resp := map[string]any{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		resp["status"] = "not ready"
	}
	if stats, err := s.referenceStats(ctx); err == nil {
		resp["reference_data"] = stats
	}
	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondFailed(w http.ResponseWriter, status int, message, jobID string, start time.Time) {
	respondJSON(w, status, failedResponse{
		Status:         string(jobs.StatusFailed),
		Error:          message,
		JobID:          jobID,
		ProcessingTime: jobs.Seconds(time.Since(start)),
	})
}
