package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unadm-hub/academic-core/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TaskRepository implements task.Repository for PostgreSQL.
type TaskRepository struct {
	db Querier
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db Querier) *TaskRepository {
	return &TaskRepository{db: db}
}

var _ task.Repository = (*TaskRepository)(nil)

const taskColumns = `id, enrollment_id, due_date, title, instructions, status, completed_at, value`

// Save inserts the task or replaces the row with the same ID.
func (r *TaskRepository) Save(ctx context.Context, t *task.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			enrollment_id = EXCLUDED.enrollment_id,
			due_date = EXCLUDED.due_date,
			title = EXCLUDED.title,
			instructions = EXCLUDED.instructions,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			value = EXCLUDED.value,
			updated_at = NOW()
	`

	var instructions *string
	if s := t.Instructions(); s != "" {
		instructions = &s
	}

	var completedAt *time.Time
	if at, ok := t.CompletedAt(); ok {
		completedAt = &at
	}

	_, err := r.db.Exec(ctx, query,
		t.ID(),
		t.EnrollmentID(),
		t.DueDate(),
		t.Title(),
		instructions,
		int(t.Status()),
		completedAt,
		t.Params().Value,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("task %s references unknown enrollment %s: %w", t.ID(), t.EnrollmentID(), err)
		}
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// GetByID returns the task with the given ID, or nil when there is none.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return optional(scanTask(r.db.QueryRow(ctx, query, id)))
}

// GetByEnrollment returns the tasks of an enrollment ordered by due date.
func (r *TaskRepository) GetByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE enrollment_id = $1 ORDER BY due_date, id`
	return r.query(ctx, query, enrollmentID)
}

// GetTodo returns every task in Todo status ordered by due date.
func (r *TaskRepository) GetTodo(ctx context.Context) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1 ORDER BY due_date, id`
	return r.query(ctx, query, int(task.StatusTodo))
}

func (r *TaskRepository) query(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	return collect(rows, scanTask)
}

// scanTask scans a single task and rebuilds it with task.Restore, which does
// not apply the due-date creation policy.
func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		p            task.NewTaskParams
		instructions *string
		status       int
		completedAt  *time.Time
	)

	err := row.Scan(
		&p.ID,
		&p.EnrollmentID,
		&p.DueDate,
		&p.Title,
		&instructions,
		&status,
		&completedAt,
		&p.Value,
	)
	if err != nil {
		return nil, err
	}

	if instructions != nil {
		p.Instructions = *instructions
	}

	p.Progress, err = task.ProgressFor(task.Status(status), completedAt)
	if err != nil {
		return nil, fmt.Errorf("stored task %s is invalid: %w", p.ID, err)
	}

	t, err := task.Restore(p)
	if err != nil {
		return nil, fmt.Errorf("stored task %s is invalid: %w", p.ID, err)
	}
	return t, nil
}
