package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
	"github.com/p-n-ai/exam-analyzer/internal/exam"
	"github.com/p-n-ai/exam-analyzer/internal/extract"
	"github.com/p-n-ai/exam-analyzer/internal/jobs"
	"github.com/p-n-ai/exam-analyzer/internal/pipeline"
	"github.com/p-n-ai/exam-analyzer/internal/progress"
	"github.com/p-n-ai/exam-analyzer/internal/server"
	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

type fakeRunner struct {
	out  *pipeline.Outcome
	err  error
	last pipeline.Upload
}

func (f *fakeRunner) Run(_ context.Context, up pipeline.Upload) (*pipeline.Outcome, error) {
	f.last = up
	return f.out, f.err
}

type fakeCheck struct{ err error }

func (f fakeCheck) HealthCheck(context.Context) error { return f.err }

func references() *taxonomy.Store {
	return taxonomy.NewStore(taxonomy.NewMemorySource(map[taxonomy.Key]taxonomy.Taxonomy{
		{Exam: exam.JEE, Subject: exam.Physics}: {
			{UnitNumber: "9", UnitName: "Optics", SubtopicNumber: "9.3", SubtopicName: "Lens formula"},
		},
	}))
}

func newServer(t *testing.T, runner server.Runner, checks map[string]server.Checker) (*server.Server, string, *jobs.MemoryStore) {
	t.Helper()
	out := t.TempDir()
	store := jobs.NewMemoryStore()
	srv := server.New(server.Config{
		Pipeline:   runner,
		Jobs:       store,
		References: references(),
		Models:     []ai.ModelInfo{{ID: ai.DefaultModel, Name: "Gemini 2.5 Flash", Provider: "Google", SupportsVision: true}},
		Broker:     progress.NewBroker(),
		Checks:     checks,
		OutputDir:  out,
	})
	return srv, out, store
}

func multipartUpload(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("pdf_file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestAnalyze_Success(t *testing.T) {
	runner := &fakeRunner{out: &pipeline.Outcome{
		JobID:          "abcd1234",
		UploadID:       "up-7",
		Status:         jobs.StatusCompleted,
		QuestionCount:  1,
		ExamType:       exam.JEE,
		Subject:        exam.Physics,
		ModelUsed:      "openai/gpt-4o",
		ProcessingTime: 4.2,
		DocxFile:       "paper_Analysis_abcd1234.docx",
		XlsxFile:       "paper_Analysis_abcd1234.xlsx",
		Questions:      []exam.Question{{SNo: 1, SubtopicNumber: "9.3"}},
	}}
	srv, _, _ := newServer(t, runner, nil)

	req := multipartUpload(t, "paper.PDF", map[string]string{
		"model_id":  "openai/gpt-4o",
		"exam_type": "jee main",
		"subject":   "physics",
		"upload_id": "up-7",
		"mode":      "Text",
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "abcd1234", body["job_id"])
	assert.Equal(t, "up-7", body["upload_id"])
	assert.Equal(t, float64(1), body["questions_count"])
	assert.Equal(t, "/download/paper_Analysis_abcd1234.docx", body["docx_url"])
	assert.Equal(t, "/download/paper_Analysis_abcd1234.xlsx", body["xlsx_url"])
	assert.Len(t, body["questions"], 1)

	assert.Equal(t, "paper.PDF", runner.last.Filename)
	assert.Equal(t, "openai/gpt-4o", runner.last.Model)
	assert.Equal(t, exam.JEE, runner.last.ExamType)
	assert.Equal(t, exam.Physics, runner.last.Subject)
	assert.Equal(t, extract.ModeText, runner.last.Mode)
	assert.Equal(t, "up-7", runner.last.UploadID)
	assert.Equal(t, []byte("%PDF-1.4 test"), runner.last.Data)
}

func TestAnalyze_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing file",
			req:      func(t *testing.T) *http.Request { return multipartUpload(t, "", map[string]string{"model_id": "x"}) },
			wantCode: http.StatusBadRequest,
			wantErr:  "No PDF file uploaded",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{}"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "No PDF file uploaded",
		},
		{
			name:     "wrong extension",
			req:      func(t *testing.T) *http.Request { return multipartUpload(t, "paper.docx", nil) },
			wantCode: http.StatusBadRequest,
			wantErr:  "Only PDF files allowed",
		},
		{
			name:     "unknown mode",
			req:      func(t *testing.T) *http.Request { return multipartUpload(t, "paper.pdf", map[string]string{"mode": "ocr"}) },
			wantCode: http.StatusBadRequest,
			wantErr:  `unknown mode "ocr"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv, _, _ := newServer(t, runner, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.wantCode, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "failed", body["status"])
			assert.Equal(t, tt.wantErr, body["error"])
			assert.Empty(t, runner.last.Filename, "pipeline must not run")
		})
	}
}

func TestAnalyze_PipelineFailure(t *testing.T) {
	runner := &fakeRunner{err: &pipeline.JobError{
		JobID:   "dead0001",
		Elapsed: 1500 * time.Millisecond,
		Err:     errors.New("analyze: malformed classifier response"),
	}}
	srv, _, _ := newServer(t, runner, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, multipartUpload(t, "paper.pdf", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "analyze: malformed classifier response", body["error"])
	assert.Equal(t, "dead0001", body["job_id"])
	assert.Contains(t, body, "processing_time")
}

func TestDownload(t *testing.T) {
	srv, out, _ := newServer(t, &fakeRunner{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(out, "paper_Analysis_x.xlsx"), []byte("xlsx-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(out), "secret.txt"), []byte("nope"), 0o644))
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/paper_Analysis_x.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	for _, path := range []string{
		"/download/missing.docx",
		"/download/..%2Fsecret.txt",
		"/download/.hidden",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "File not found", decode(t, rec)["error"], path)
	}
}

func TestModelsAndReferenceStats(t *testing.T) {
	srv, _, _ := newServer(t, &fakeRunner{}, nil)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var models struct {
		Models []ai.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models.Models, 1)
	assert.True(t, models.Models[0].SupportsVision)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reference-stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		ReferenceData []taxonomy.Stat `json:"reference_data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, []taxonomy.Stat{{ExamType: "JEE", Subject: "Physics", Count: 1}}, stats.ReferenceData)
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		checks     map[string]server.Checker
		wantStatus int
		wantState  string
	}{
		{"healthz", "/healthz", nil, http.StatusOK, "ok"},
		{"health", "/health", nil, http.StatusOK, "ok"},
		{"readyz", "/readyz", map[string]server.Checker{"database": fakeCheck{}}, http.StatusOK, "ready"},
		{"readyz failing", "/readyz", map[string]server.Checker{"cache": fakeCheck{err: errors.New("down")}}, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newServer(t, &fakeRunner{}, tt.checks)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantState, decode(t, rec)["status"])
		})
	}
}

func TestHealth_IncludesReferenceData(t *testing.T) {
	srv, _, _ := newServer(t, &fakeRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	body := decode(t, rec)
	assert.Len(t, body["reference_data"], 1)
	assert.NotEmpty(t, body["timestamp"])
}

func TestGetJob(t *testing.T) {
	srv, _, store := newServer(t, &fakeRunner{}, nil)
	job, err := store.Create(context.Background(), jobs.Job{Filename: "paper.pdf", Model: "m"})
	require.NoError(t, err)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, job.ID, body["job_id"])
	assert.Equal(t, "processing", body["status"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressWebSocket(t *testing.T) {
	broker := progress.NewBroker()
	srv := server.New(server.Config{Pipeline: &fakeRunner{}, Broker: broker, OutputDir: t.TempDir()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/progress/up-1", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return broker.Subscribers("up-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	broker.Publish(progress.Event{UploadID: "up-1", Stage: progress.StageAnalyzing, Chunk: 1, TotalChunks: 2, Percent: 25})
	broker.Publish(progress.Event{UploadID: "up-other", Stage: progress.StageAnalyzing})
	broker.Publish(progress.Event{UploadID: "up-1", Stage: progress.StageCompleted, Percent: 100})

	var first, second progress.Event
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.NoError(t, wsjson.Read(ctx, conn, &second))
	assert.Equal(t, progress.StageAnalyzing, first.Stage)
	assert.Equal(t, 2, first.TotalChunks)
	assert.Equal(t, progress.StageCompleted, second.Stage)

	var extra progress.Event
	err = wsjson.Read(ctx, conn, &extra)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	require.Eventually(t, func() bool { return broker.Subscribers("up-1") == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestProgressRouteDisabledWithoutBroker(t *testing.T) {
	srv := server.New(server.Config{Pipeline: &fakeRunner{}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/progress/up-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
