package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a job store on pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, job Job) (Job, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if job.ID == "" {
		job.ID = NewID()
	}
	job.Status = StatusProcessing
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, upload_id, filename, fingerprint, model, status, exam_type, subject, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		job.ID,
		nullIfEmpty(job.UploadID),
		job.Filename,
		job.Fingerprint,
		job.Model,
		string(job.Status),
		nullIfEmpty(string(job.ExamType)),
		nullIfEmpty(string(job.Subject)),
		job.CreatedAt,
	).Scan(&job.CreatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		job                          Job
		uploadID, examType, subject  *string
		docxFile, xlsxFile, errorMsg *string
		status                       string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, upload_id, filename, fingerprint, model, status, exam_type, subject,
		        question_count, docx_file, xlsx_file, error, processing_time, created_at, finished_at
		 FROM jobs
		 WHERE id = $1`,
		id,
	).Scan(
		&job.ID,
		&uploadID,
		&job.Filename,
		&job.Fingerprint,
		&job.Model,
		&status,
		&examType,
		&subject,
		&job.QuestionCount,
		&docxFile,
		&xlsxFile,
		&errorMsg,
		&job.ProcessingTime,
		&job.CreatedAt,
		&job.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Job{}, fmt.Errorf("get job: %w", err)
	}

	job.Status = Status(status)
	job.UploadID = deref(uploadID)
	job.ExamType = exam.Type(deref(examType))
	job.Subject = exam.Subject(deref(subject))
	job.DocxFile = deref(docxFile)
	job.XlsxFile = deref(xlsxFile)
	job.Error = deref(errorMsg)
	return job, nil
}

func (s *PostgresStore) Finish(ctx context.Context, id string, out Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $2,
		     exam_type = COALESCE($3, exam_type),
		     subject = COALESCE($4, subject),
		     question_count = $5,
		     docx_file = $6,
		     xlsx_file = $7,
		     error = $8,
		     processing_time = $9,
		     finished_at = NOW()
		 WHERE id = $1`,
		id,
		string(out.Status),
		nullIfEmpty(string(out.ExamType)),
		nullIfEmpty(string(out.Subject)),
		out.QuestionCount,
		nullIfEmpty(out.DocxFile),
		nullIfEmpty(out.XlsxFile),
		nullIfEmpty(out.Error),
		Seconds(out.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
