// Package jobs records analysis jobs and their lifecycle events.
package jobs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one analysis of an uploaded paper.
type Job struct {
	ID             string       `json:"job_id"`
	UploadID       string       `json:"upload_id,omitempty"`
	Filename       string       `json:"filename"`
	Fingerprint    string       `json:"fingerprint"`
	Model          string       `json:"model"`
	Status         Status       `json:"status"`
	ExamType       exam.Type    `json:"exam_type,omitempty"`
	Subject        exam.Subject `json:"subject,omitempty"`
	QuestionCount  int          `json:"questions_count"`
	DocxFile       string       `json:"docx_filename,omitempty"`
	XlsxFile       string       `json:"xlsx_filename,omitempty"`
	Error          string       `json:"error,omitempty"`
	ProcessingTime float64      `json:"processing_time"`
	CreatedAt      time.Time    `json:"created_at"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
}

// Outcome is what a finished job reports back to its record.
type Outcome struct {
	Status        Status
	ExamType      exam.Type
	Subject       exam.Subject
	QuestionCount int
	DocxFile      string
	XlsxFile      string
	Error         string
	Elapsed       time.Duration
}

// Store persists job records.
type Store interface {
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	Finish(ctx context.Context, id string, out Outcome) error
}

// NewID returns a short random job id.
func NewID() string {
	return uuid.NewString()[:8]
}

// Fingerprint hashes an uploaded document.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Seconds rounds an elapsed time to one decimal of a second.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
	}
}

func (s *MemoryStore) Create(_ context.Context, job Job) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = NewID()
	}
	if _, exists := s.jobs[job.ID]; exists {
		return Job{}, fmt.Errorf("job %s already exists", job.ID)
	}
	job.Status = StatusProcessing
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	stored := job
	s.jobs[job.ID] = &stored
	return job, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *job, nil
}

func (s *MemoryStore) Finish(_ context.Context, id string, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	applyOutcome(job, out, time.Now())
	return nil
}

func applyOutcome(job *Job, out Outcome, now time.Time) {
	job.Status = out.Status
	if out.ExamType != "" {
		job.ExamType = out.ExamType
	}
	if out.Subject != "" {
		job.Subject = out.Subject
	}
	job.QuestionCount = out.QuestionCount
	job.DocxFile = out.DocxFile
	job.XlsxFile = out.XlsxFile
	job.Error = out.Error
	job.ProcessingTime = Seconds(out.Elapsed)
	job.FinishedAt = &now
}
