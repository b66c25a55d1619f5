package task

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence port for tasks.
// Implementations rebuild tasks with ProgressFor and Restore, never New, so
// stored tasks past their due date load regardless of the creation policy.
type Repository interface {
	// Save persists a new task or replaces the stored one with the same ID.
	Save(ctx context.Context, t *Task) error

	// GetByID returns the task with the given ID.
	// Returns nil, nil when no task matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)

	// GetByEnrollment returns the tasks of an enrollment ordered by due date.
	// Empty, not nil, when none match.
	GetByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*Task, error)

	// GetTodo returns every task in Todo status ordered by due date.
	// Empty, not nil, when none match.
	GetTodo(ctx context.Context) ([]*Task, error)
}
