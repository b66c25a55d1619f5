package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TaskRepository implements task.Repository. Lists are ordered by due date,
// then by ID.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*task.Task

	// byEnrollment indexes task IDs by enrollment.
	byEnrollment map[uuid.UUID]map[uuid.UUID]struct{}
}

var _ task.Repository = (*TaskRepository)(nil)

// NewTaskRepository creates an empty TaskRepository.
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks:        make(map[uuid.UUID]*task.Task),
		byEnrollment: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Save implements task.Repository.
func (r *TaskRepository) Save(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.tasks[t.ID()]; ok && previous.EnrollmentID() != t.EnrollmentID() {
		delete(r.byEnrollment[previous.EnrollmentID()], t.ID())
	}

	r.tasks[t.ID()] = t
	ids, ok := r.byEnrollment[t.EnrollmentID()]
	if !ok {
		ids = make(map[uuid.UUID]struct{})
		r.byEnrollment[t.EnrollmentID()] = ids
	}
	ids[t.ID()] = struct{}{}
	return nil
}

// GetByID implements task.Repository.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tasks[id], nil
}

// GetByEnrollment implements task.Repository.
func (r *TaskRepository) GetByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byEnrollment[enrollmentID]
	out := make([]*task.Task, 0, len(ids))
	for id := range ids {
		out = append(out, r.tasks[id])
	}
	sortByDueDate(out)
	return out, nil
}

// GetTodo implements task.Repository.
func (r *TaskRepository) GetTodo(ctx context.Context) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*task.Task, 0)
	for _, t := range r.tasks {
		if t.Status() == task.StatusTodo {
			out = append(out, t)
		}
	}
	sortByDueDate(out)
	return out, nil
}

func sortByDueDate(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		di, dj := tasks[i].DueDate(), tasks[j].DueDate()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		a, b := tasks[i].ID(), tasks[j].ID()
		return bytes.Compare(a[:], b[:]) < 0
	})
}
