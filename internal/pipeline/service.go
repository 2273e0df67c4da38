// Package pipeline runs one uploaded paper end to end: extraction,
// classification, subtopic matching and report generation, with the job
// record, audit events and progress updates kept current along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
	"github.com/p-n-ai/exam-analyzer/internal/analysis"
	"github.com/p-n-ai/exam-analyzer/internal/exam"
	"github.com/p-n-ai/exam-analyzer/internal/extract"
	"github.com/p-n-ai/exam-analyzer/internal/jobs"
	"github.com/p-n-ai/exam-analyzer/internal/progress"
	"github.com/p-n-ai/exam-analyzer/internal/report"
)

// Extractor turns a PDF on disk into questions or page images.
type Extractor interface {
	Extract(ctx context.Context, pdfPath, workDir string, mode extract.Mode) (*extract.Extraction, error)
}

// Analyzer classifies extracted content.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input, model string, examType exam.Type, subject exam.Subject) (*analysis.Result, error)
}

// Annotator attaches reference subtopics to classified questions.
type Annotator interface {
	Annotate(ctx context.Context, questions []exam.Question, examType exam.Type, paperSubject exam.Subject)
}

// Upload is one analysis request.
type Upload struct {
	Filename string
	Data     []byte
	Model    string
	Mode     extract.Mode // empty selects the service default
	ExamType exam.Type    // forced exam, Unknown or empty to detect
	Subject  exam.Subject // forced subject, UnknownSubject or empty to detect
	UploadID string
}

// Outcome is a completed analysis.
type Outcome struct {
	JobID          string          `json:"job_id"`
	UploadID       string          `json:"upload_id"`
	Status         jobs.Status     `json:"status"`
	QuestionCount  int             `json:"questions_count"`
	ExamType       exam.Type       `json:"exam_type"`
	Subject        exam.Subject    `json:"subject"`
	ModelUsed      string          `json:"model_used"`
	Mode           extract.Mode    `json:"mode"`
	ProcessingTime float64         `json:"processing_time"`
	DocxFile       string          `json:"docx_filename"`
	XlsxFile       string          `json:"xlsx_filename"`
	Cached         bool            `json:"cached"`
	Summary        report.Summary  `json:"summary"`
	Questions      []exam.Question `json:"questions"`
}

// JobError reports a failed run together with the job it was recorded under.
type JobError struct {
	JobID   string
	Elapsed time.Duration
	Err     error
}

func (e *JobError) Error() string {
	if e.JobID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// ServiceConfig holds dependencies and settings for the pipeline.
type ServiceConfig struct {
	Extractor Extractor
	Analyzer  Analyzer
	Matcher   Annotator
	Jobs      jobs.Store         // default: in-memory
	Events    jobs.EventLogger   // default: discard
	Progress  progress.Publisher // default: discard
	Cache     ResultCache        // nil disables result caching

	DefaultMode  extract.Mode // default: vision
	DefaultModel string       // default: ai.DefaultModel
	Models       []ai.ModelInfo
	WorkDir      string // default: os.TempDir()
	OutputDir    string
}

// Service runs analyses.
type Service struct {
	extractor Extractor
	analyzer  Analyzer
	matcher   Annotator
	jobs      jobs.Store
	events    jobs.EventLogger
	progress  progress.Publisher
	cache     ResultCache

	defaultMode  extract.Mode
	defaultModel string
	textOnly     map[string]bool
	workDir      string
	outputDir    string
}

// NewService creates a pipeline service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		extractor:    cfg.Extractor,
		analyzer:     cfg.Analyzer,
		matcher:      cfg.Matcher,
		jobs:         cfg.Jobs,
		events:       cfg.Events,
		progress:     cfg.Progress,
		cache:        cfg.Cache,
		defaultMode:  cfg.DefaultMode,
		defaultModel: cfg.DefaultModel,
		textOnly:     make(map[string]bool),
		workDir:      cfg.WorkDir,
		outputDir:    cfg.OutputDir,
	}
	if s.jobs == nil {
		s.jobs = jobs.NewMemoryStore()
	}
	if s.events == nil {
		s.events = jobs.NopEventLogger{}
	}
	if s.progress == nil {
		s.progress = progress.NopPublisher{}
	}
	if s.defaultMode == "" {
		s.defaultMode = extract.ModeVision
	}
	if s.defaultModel == "" {
		s.defaultModel = ai.DefaultModel
	}
	if s.workDir == "" {
		s.workDir = os.TempDir()
	}
	for _, m := range cfg.Models {
		if !m.SupportsVision {
			s.textOnly[m.ID] = true
		}
	}
	return s
}

// Jobs exposes the job store for status lookups.
func (s *Service) Jobs() jobs.Store {
	return s.jobs
}

// OutputDir is where reports are written.
func (s *Service) OutputDir() string {
	return s.outputDir
}

// modeFor picks the extraction mode. Models known to lack image input are
// always run on the text layer.
func (s *Service) modeFor(requested extract.Mode, model string) extract.Mode {
	mode := requested
	if mode == "" {
		mode = s.defaultMode
	}
	if mode == extract.ModeVision && s.textOnly[model] {
		slog.Info("model has no vision support, using text extraction", "model", model)
		return extract.ModeText
	}
	return mode
}

// Run analyzes one uploaded paper. Failures are recorded on the job and
// returned as a *JobError.
func (s *Service) Run(ctx context.Context, up Upload) (*Outcome, error) {
	start := time.Now()

	model := up.Model
	if model == "" {
		model = s.defaultModel
	}
	mode := s.modeFor(up.Mode, model)

	job, err := s.jobs.Create(ctx, jobs.Job{
		UploadID:    up.UploadID,
		Filename:    up.Filename,
		Fingerprint: jobs.Fingerprint(up.Data),
		Model:       model,
	})
	if err != nil {
		return nil, &JobError{Elapsed: time.Since(start), Err: fmt.Errorf("create job: %w", err)}
	}

	slog.Info("analysis job started",
		"job_id", job.ID,
		"upload_id", up.UploadID,
		"filename", up.Filename,
		"bytes", len(up.Data),
		"model", model,
		"mode", mode,
	)
	s.logEvent(job.ID, jobs.EventStarted, map[string]any{
		"filename": up.Filename,
		"model":    model,
		"mode":     string(mode),
	})
	s.publish(up, job.ID, progress.Event{Stage: progress.StageStarted, Message: "Analysis started"})

	out, err := s.run(ctx, job, up, model, mode)
	elapsed := time.Since(start)
	// The job record must be closed even when the request was cancelled.
	finishCtx := context.WithoutCancel(ctx)

	if err != nil {
		slog.Error("analysis job failed", "job_id", job.ID, "elapsed", elapsed, "error", err)
		if ferr := s.jobs.Finish(finishCtx, job.ID, jobs.Outcome{
			Status:  jobs.StatusFailed,
			Error:   err.Error(),
			Elapsed: elapsed,
		}); ferr != nil {
			slog.Error("failed to record job failure", "job_id", job.ID, "error", ferr)
		}
		s.logEvent(job.ID, jobs.EventFailed, map[string]any{"error": err.Error()})
		s.publish(up, job.ID, progress.Event{Stage: progress.StageFailed, Message: err.Error(), Percent: 100})
		return nil, &JobError{JobID: job.ID, Elapsed: elapsed, Err: err}
	}

	out.ProcessingTime = jobs.Seconds(elapsed)
	if err := s.jobs.Finish(finishCtx, job.ID, jobs.Outcome{
		Status:        jobs.StatusCompleted,
		ExamType:      out.ExamType,
		Subject:       out.Subject,
		QuestionCount: out.QuestionCount,
		DocxFile:      out.DocxFile,
		XlsxFile:      out.XlsxFile,
		Elapsed:       elapsed,
	}); err != nil {
		slog.Error("failed to record job completion", "job_id", job.ID, "error", err)
	}
	s.logEvent(job.ID, jobs.EventCompleted, map[string]any{
		"questions":       out.QuestionCount,
		"processing_time": out.ProcessingTime,
		"cached":          out.Cached,
	})
	s.publish(up, job.ID, progress.Event{Stage: progress.StageCompleted, Message: out.Summary.String(), Percent: 100})

	slog.Info("analysis job completed",
		"job_id", job.ID,
		"questions", out.QuestionCount,
		"exam_type", out.ExamType,
		"subject", out.Subject,
		"cached", out.Cached,
		"elapsed", elapsed,
	)
	return out, nil
}

func (s *Service) run(ctx context.Context, job jobs.Job, up Upload, model string, mode extract.Mode) (*Outcome, error) {
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	workDir, err := os.MkdirTemp(s.workDir, "exam-"+job.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	out := &Outcome{
		JobID:     job.ID,
		UploadID:  up.UploadID,
		Status:    jobs.StatusCompleted,
		ModelUsed: model,
		Mode:      mode,
	}

	key := CacheKey(job.Fingerprint, model, mode, up.ExamType, up.Subject)
	cached, hit := s.lookup(ctx, key)

	var questions []exam.Question
	if hit {
		out.Cached = true
		out.ExamType, out.Subject = cached.ExamType, cached.Subject
		questions = cached.Questions
		s.logEvent(job.ID, jobs.EventCacheHit, map[string]any{"questions": len(questions)})
		s.publish(up, job.ID, progress.Event{Stage: progress.StageAnalyzing, Message: "Reusing previous analysis", Percent: 75})
	} else {
		a, err := s.analyze(ctx, job.ID, up, workDir, model, mode)
		if err != nil {
			return nil, err
		}
		out.ExamType, out.Subject = a.ExamType, a.Subject
		questions = a.Questions
		s.store(ctx, key, a)
	}

	s.publish(up, job.ID, progress.Event{Stage: progress.StageMatching, Message: "Matching subtopics", Percent: 80})
	s.matcher.Annotate(ctx, questions, out.ExamType, out.Subject)
	matched := 0
	for _, q := range questions {
		if q.Matched() {
			matched++
		}
	}
	s.logEvent(job.ID, jobs.EventMatched, map[string]any{"questions": len(questions), "matched": matched})

	s.publish(up, job.ID, progress.Event{Stage: progress.StageReporting, Message: "Generating reports", Percent: 90})
	paper := report.PaperName(up.Filename)
	out.DocxFile, out.XlsxFile = report.FileNames(paper, job.ID)
	meta := report.Metadata{
		PaperName:   paper,
		ExamType:    out.ExamType,
		Subject:     out.Subject,
		ModelUsed:   model,
		GeneratedAt: time.Now(),
	}
	if err := report.WriteDOCXFile(filepath.Join(s.outputDir, out.DocxFile), questions, meta); err != nil {
		return nil, fmt.Errorf("write DOCX report: %w", err)
	}
	if err := report.WriteXLSXFile(filepath.Join(s.outputDir, out.XlsxFile), questions, meta); err != nil {
		return nil, fmt.Errorf("write XLSX report: %w", err)
	}
	s.logEvent(job.ID, jobs.EventReported, map[string]any{"docx": out.DocxFile, "xlsx": out.XlsxFile})

	out.Questions = questions
	out.QuestionCount = len(questions)
	out.Summary = report.Summarize(questions)
	return out, nil
}

// analyze extracts and classifies the paper.
func (s *Service) analyze(ctx context.Context, jobID string, up Upload, workDir, model string, mode extract.Mode) (CachedAnalysis, error) {
	pdfPath := filepath.Join(workDir, "upload.pdf")
	if err := os.WriteFile(pdfPath, up.Data, 0o600); err != nil {
		return CachedAnalysis{}, fmt.Errorf("save upload: %w", err)
	}

	s.publish(up, jobID, progress.Event{Stage: progress.StageExtracting, Message: "Extracting PDF", Percent: 10})
	ext, err := s.extractor.Extract(ctx, pdfPath, workDir, mode)
	if err != nil {
		return CachedAnalysis{}, fmt.Errorf("extract: %w", err)
	}

	examType, subject := ext.ExamType, ext.Subject
	if up.ExamType.Known() {
		examType = up.ExamType
	}
	if up.Subject.Known() {
		subject = up.Subject
	}
	s.logEvent(jobID, jobs.EventExtracted, map[string]any{
		"pages":     ext.PageCount,
		"questions": len(ext.Questions),
		"images":    len(ext.Pages),
		"exam_type": string(examType),
		"subject":   string(subject),
	})

	s.publish(up, jobID, progress.Event{Stage: progress.StageAnalyzing, Message: "Classifying questions", Percent: 25})
	in := analysis.Input{
		Questions: ext.Questions,
		Pages:     ext.Pages,
		OnChunk: func(chunk, total int) {
			s.publish(up, jobID, progress.Event{
				Stage:       progress.StageAnalyzing,
				Message:     fmt.Sprintf("Classifying chunk %d of %d", chunk, total),
				Percent:     25 + 50*(chunk-1)/total,
				Chunk:       chunk,
				TotalChunks: total,
			})
		},
	}
	res, err := s.analyzer.Analyze(ctx, in, model, examType, subject)
	if err != nil {
		return CachedAnalysis{}, fmt.Errorf("analyze: %w", err)
	}
	mergeExtracted(res.Questions, ext.Questions, res.ChunksProcessed)

	s.logEvent(jobID, jobs.EventAnalyzed, map[string]any{
		"questions": len(res.Questions),
		"chunks":    res.ChunksProcessed,
		"exam_type": string(res.ExamType),
		"duration":  res.ProcessingTime.String(),
	})
	return CachedAnalysis{
		ExamType:  res.ExamType,
		Subject:   subject,
		Questions: res.Questions,
		Chunks:    res.ChunksProcessed,
	}, nil
}

func (s *Service) lookup(ctx context.Context, key string) (CachedAnalysis, bool) {
	if s.cache == nil {
		return CachedAnalysis{}, false
	}
	a, err := s.cache.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return CachedAnalysis{}, false
	case err != nil:
		slog.Warn("result cache lookup failed", "error", err)
		return CachedAnalysis{}, false
	}
	return a, true
}

func (s *Service) store(ctx context.Context, key string, a CachedAnalysis) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, key, a); err != nil {
		slog.Warn("result cache store failed", "error", err)
	}
}

func (s *Service) logEvent(jobID, eventType string, data map[string]any) {
	if err := s.events.LogEvent(jobs.Event{JobID: jobID, EventType: eventType, Data: data}); err != nil {
		slog.Warn("failed to log job event", "job_id", jobID, "event", eventType, "error", err)
	}
}

func (s *Service) publish(up Upload, jobID string, e progress.Event) {
	e.UploadID = up.UploadID
	e.JobID = jobID
	s.progress.Publish(e)
}

// mergeExtracted copies labels and figure references found during text
// extraction onto the classified questions. With a single chunk the
// classifier's serial numbers are the extracted ones and questions pair up
// by number. Renumbered multi-chunk results are positions, so they pair up
// by index, only when no question was dropped or added, and keep their
// regenerated labels.
func mergeExtracted(questions []exam.Question, raw []exam.RawQuestion, chunks int) {
	if len(raw) == 0 {
		return
	}
	if chunks > 1 {
		if len(questions) != len(raw) {
			slog.Warn("classified and extracted question counts differ, skipping merge",
				"classified", len(questions),
				"extracted", len(raw),
			)
			return
		}
		for i := range questions {
			applyExtracted(&questions[i], raw[i], false)
		}
		return
	}

	byNumber := make(map[int]exam.RawQuestion, len(raw))
	for _, r := range raw {
		byNumber[r.Number] = r
	}
	for i := range questions {
		if r, ok := byNumber[questions[i].SNo]; ok {
			applyExtracted(&questions[i], r, true)
		}
	}
}

func applyExtracted(q *exam.Question, r exam.RawQuestion, withLabel bool) {
	if withLabel && r.Label != "" {
		q.Label = r.Label
	}
	if len(r.DiagramRefs) > 0 {
		q.DiagramRefs = append([]string(nil), r.DiagramRefs...)
	}
	q.HasDiagram = q.HasDiagram || r.HasDiagram
}
