package taxonomy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

const dbTimeout = 5 * time.Second

// PostgresSource reads taxonomies from the taxonomy_entries table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgreSQL-backed Source.
func NewPostgresSource(pool *pgxpool.Pool) (*PostgresSource, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresSource{pool: pool}, nil
}

func (s *PostgresSource) Read(ctx context.Context, key Key) (Taxonomy, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT unit_number, unit_name, subtopic_number, subtopic_name
		 FROM taxonomy_entries
		 WHERE exam_type = $1 AND subject = $2
		 ORDER BY position ASC`,
		string(key.Exam),
		string(key.Subject),
	)
	if err != nil {
		return nil, fmt.Errorf("query taxonomy %s: %w", key, err)
	}

	t, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.UnitNumber, &e.UnitName, &e.SubtopicNumber, &e.SubtopicName)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan taxonomy %s: %w", key, err)
	}
	if len(t) == 0 {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *PostgresSource) List(ctx context.Context) ([]Key, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT exam_type, subject
		 FROM taxonomy_entries
		 ORDER BY exam_type, subject`,
	)
	if err != nil {
		return nil, fmt.Errorf("list taxonomies: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Key, error) {
		var examType, subject string
		err := row.Scan(&examType, &subject)
		return Key{Exam: exam.Type(examType), Subject: exam.Subject(subject)}, err
	})
}

// Replace swaps the stored taxonomy for key with t in one transaction.
func (s *PostgresSource) Replace(ctx context.Context, key Key, t Taxonomy) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM taxonomy_entries WHERE exam_type = $1 AND subject = $2`,
		string(key.Exam),
		string(key.Subject),
	); err != nil {
		return fmt.Errorf("delete taxonomy %s: %w", key, err)
	}

	rows := make([][]any, len(t))
	for i, e := range t {
		rows[i] = []any{string(key.Exam), string(key.Subject), i, e.UnitNumber, e.UnitName, e.SubtopicNumber, e.SubtopicName}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"taxonomy_entries"},
		[]string{"exam_type", "subject", "position", "unit_number", "unit_name", "subtopic_number", "subtopic_name"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy taxonomy %s: %w", key, err)
	}

	return tx.Commit(ctx)
}
