package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
	"github.com/p-n-ai/exam-analyzer/internal/jobs"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()

	job, err := store.Create(ctx, jobs.Job{
		UploadID:    "up-1",
		Filename:    "paper.pdf",
		Fingerprint: jobs.Fingerprint([]byte("pdf")),
		Model:       "google/gemini-2.5-flash",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(job.ID) != 8 {
		t.Errorf("ID = %q, want 8 characters", job.ID)
	}
	if job.Status != jobs.StatusProcessing {
		t.Errorf("Status = %q, want processing", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	err = store.Finish(ctx, job.ID, jobs.Outcome{
		Status:        jobs.StatusCompleted,
		ExamType:      exam.JEE,
		Subject:       exam.Physics,
		QuestionCount: 30,
		DocxFile:      "paper_Analysis_x.docx",
		XlsxFile:      "paper_Analysis_x.xlsx",
		Elapsed:       12340 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != jobs.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.ExamType != exam.JEE || got.Subject != exam.Physics {
		t.Errorf("exam/subject = %q/%q", got.ExamType, got.Subject)
	}
	if got.QuestionCount != 30 {
		t.Errorf("QuestionCount = %d, want 30", got.QuestionCount)
	}
	if got.ProcessingTime != 12.3 {
		t.Errorf("ProcessingTime = %v, want 12.3", got.ProcessingTime)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	job, _ := store.Create(ctx, jobs.Job{Filename: "a.pdf"})

	got, _ := store.Get(ctx, job.ID)
	got.Filename = "changed.pdf"

	again, _ := store.Get(ctx, job.ID)
	if again.Filename != "a.pdf" {
		t.Errorf("stored job mutated through copy: %q", again.Filename)
	}
}

func TestMemoryStore_Failed(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	job, _ := store.Create(ctx, jobs.Job{ID: "fixedid1", Filename: "a.pdf"})

	if err := store.Finish(ctx, job.ID, jobs.Outcome{Status: jobs.StatusFailed, Error: "boom"}); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	got, _ := store.Get(ctx, "fixedid1")
	if got.Status != jobs.StatusFailed || got.Error != "boom" {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	if _, err := store.Create(ctx, jobs.Job{ID: "dup"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, jobs.Job{ID: "dup"}); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Finish(ctx, "missing", jobs.Outcome{}); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("Finish() error = %v, want ErrNotFound", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := jobs.Fingerprint([]byte("paper one"))
	b := jobs.Fingerprint([]byte("paper one"))
	c := jobs.Fingerprint([]byte("paper two"))

	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
	if a != b {
		t.Error("fingerprint should be deterministic")
	}
	if a == c {
		t.Error("different content should fingerprint differently")
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{1549 * time.Millisecond, 1.5},
		{1560 * time.Millisecond, 1.6},
		{2 * time.Minute, 120},
	}
	for _, tt := range tests {
		if got := jobs.Seconds(tt.in); got != tt.want {
			t.Errorf("Seconds(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPostgresStore_NilPool(t *testing.T) {
	if _, err := jobs.NewPostgresStore(nil); err == nil {
		t.Fatal("expected error for nil pool")
	}
}
