package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	db Querier
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(db Querier) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

const enrollmentColumns = `id, subject_id, period, group_number, professor, advisor, attempt, status, result`

// Save inserts the enrollment or replaces the row with the same ID.
func (r *EnrollmentRepository) Save(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			period = EXCLUDED.period,
			group_number = EXCLUDED.group_number,
			professor = EXCLUDED.professor,
			advisor = EXCLUDED.advisor,
			attempt = EXCLUDED.attempt,
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		e.ID(),
		e.SubjectID(),
		e.Period().String(),
		e.Group(),
		e.Professor(),
		e.Advisor(),
		e.Attempt(),
		int(e.Status()),
		e.ResultPtr(),
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("enrollment %s references unknown subject %s: %w", e.ID(), e.SubjectID(), err)
		}
		return fmt.Errorf("failed to save enrollment: %w", err)
	}

	return nil
}

// GetByID returns the enrollment with the given ID, or nil when there is none.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	return optional(scanEnrollment(r.db.QueryRow(ctx, query, id)))
}

// GetByPeriod returns the enrollments of a period.
func (r *EnrollmentRepository) GetByPeriod(ctx context.Context, period shared.Period) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE period = $1 ORDER BY created_at, id`
	return r.query(ctx, query, period.String())
}

// GetByStatus returns the enrollments with the given status.
func (r *EnrollmentRepository) GetByStatus(ctx context.Context, status enrollment.Status) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE status = $1 ORDER BY period, created_at, id`
	return r.query(ctx, query, int(status))
}

func (r *EnrollmentRepository) query(ctx context.Context, query string, args ...any) ([]*enrollment.Enrollment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	return collect(rows, scanEnrollment)
}

// scanEnrollment scans a single enrollment. The flat status/result columns
// go through enrollment.OutcomeFor before the entity is built.
func scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var (
		p      enrollment.NewEnrollmentParams
		status int
		result *int
	)

	err := row.Scan(
		&p.ID,
		&p.SubjectID,
		&p.Period,
		&p.Group,
		&p.Professor,
		&p.Advisor,
		&p.Attempt,
		&status,
		&result,
	)
	if err != nil {
		return nil, err
	}

	p.Outcome, err = enrollment.OutcomeFor(enrollment.Status(status), result)
	if err != nil {
		return nil, fmt.Errorf("stored enrollment %s is invalid: %w", p.ID, err)
	}

	e, err := enrollment.New(p)
	if err != nil {
		return nil, fmt.Errorf("stored enrollment %s is invalid: %w", p.ID, err)
	}
	return e, nil
}
