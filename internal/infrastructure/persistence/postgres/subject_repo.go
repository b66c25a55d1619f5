package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SubjectRepository implements subject.Repository for PostgreSQL.
type SubjectRepository struct {
	db Querier
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db Querier) *SubjectRepository {
	return &SubjectRepository{db: db}
}

var _ subject.Repository = (*SubjectRepository)(nil)

const subjectColumns = `id, module, semester, block, code, acronym, name, credits, prerequisites`

// Save inserts the subject or replaces the row with the same ID.
func (r *SubjectRepository) Save(ctx context.Context, s *subject.Subject) error {
	query := `
		INSERT INTO subjects (` + subjectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			module = EXCLUDED.module,
			semester = EXCLUDED.semester,
			block = EXCLUDED.block,
			code = EXCLUDED.code,
			acronym = EXCLUDED.acronym,
			name = EXCLUDED.name,
			credits = EXCLUDED.credits,
			prerequisites = EXCLUDED.prerequisites,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		s.ID(),
		int(s.Module()),
		int(s.Semester()),
		int(s.Block()),
		s.Code().String(),
		s.Acronym(),
		s.Name(),
		s.Credits().Float64(),
		s.Prerequisites(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("subject code %s is already registered: %w: %w", s.Code(), shared.ErrAlreadyExists, err)
		}
		return fmt.Errorf("failed to save subject: %w", err)
	}

	return nil
}

// GetByID returns the subject with the given ID, or nil when there is none.
func (r *SubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	return optional(scanSubject(r.db.QueryRow(ctx, query, id)))
}

// GetByCode returns the subject with the given code, or nil when there is none.
func (r *SubjectRepository) GetByCode(ctx context.Context, code shared.SubjectCode) (*subject.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE code = $1`
	return optional(scanSubject(r.db.QueryRow(ctx, query, code.String())))
}

// ListAll returns every subject ordered by code.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects ORDER BY code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	return collect(rows, scanSubject)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanSubject scans a single subject and rebuilds it through subject.New.
func scanSubject(row pgx.Row) (*subject.Subject, error) {
	var (
		p                       subject.NewSubjectParams
		module, semester, block int
		credits                 float64
	)

	err := row.Scan(
		&p.ID,
		&module,
		&semester,
		&block,
		&p.Code,
		&p.Acronym,
		&p.Name,
		&credits,
		&p.Prerequisites,
	)
	if err != nil {
		return nil, err
	}

	p.Module = subject.Module(module)
	p.Semester = subject.Semester(semester)
	p.Block = subject.Block(block)
	p.Credits = subject.Credits(credits)

	s, err := subject.New(p)
	if err != nil {
		return nil, fmt.Errorf("stored subject %s is invalid: %w", p.ID, err)
	}
	return s, nil
}

// optional turns pgx.ErrNoRows into an absent result.
func optional[T any](v *T, err error) (*T, error) {
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return v, nil
}

// collect scans every row and closes rows. The result is never nil.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()

	result := make([]*T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}
