package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/task"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK COMMANDS
// CreateTask applies the configured due-date policy. StartTask and
// CompleteTask move a task through Todo → InProgress → Done.
// ══════════════════════════════════════════════════════════════════════════════

// CreateTaskCommand contains the data of a new task.
type CreateTaskCommand struct {
	EnrollmentID uuid.UUID
	DueDate      time.Time
	Title        string
	Instructions string
	Value        *int
}

// StartTaskCommand moves a Todo task to InProgress.
type StartTaskCommand struct {
	TaskID uuid.UUID
}

// CompleteTaskCommand marks a task Done.
type CompleteTaskCommand struct {
	TaskID uuid.UUID

	// CompletedAt defaults to the handler clock.
	CompletedAt time.Time

	// Value optionally grades the task in the same step.
	Value *int
}

// TaskResult contains the stored task.
type TaskResult struct {
	Task *task.Task
}

// TaskHandler handles the task commands.
type TaskHandler struct {
	enrollments enrollment.Repository
	tasks       task.Repository
	policy      task.Policy
	log         *zap.Logger
}

// NewTaskHandler creates a new TaskHandler. A zero policy means
// task.DefaultPolicy().
func NewTaskHandler(enrollments enrollment.Repository, tasks task.Repository, policy task.Policy, log *zap.Logger) *TaskHandler {
	if policy.DueDate == "" {
		policy.DueDate = task.DueDateInformational
	}
	if policy.Now == nil {
		policy.Now = time.Now
	}
	return &TaskHandler{
		enrollments: enrollments,
		tasks:       tasks,
		policy:      policy,
		log:         log.With(logger.Component("task")),
	}
}

// Create adds a task to an existing enrollment. Under task.DueDateReject a
// due date that is not in the future fails with shared.ErrExpired; otherwise
// an overdue task is stored and a warning is logged.
func (h *TaskHandler) Create(ctx context.Context, cmd CreateTaskCommand) (*TaskResult, error) {
	const op = "create_task"

	e, err := h.enrollments.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load enrollment: %w", op, err)
	}
	if e == nil {
		return nil, notFound(op, "enrollment", cmd.EnrollmentID)
	}

	t, err := task.New(task.NewTaskParams{
		ID:           uuid.New(),
		EnrollmentID: e.ID(),
		DueDate:      cmd.DueDate,
		Title:        cmd.Title,
		Instructions: cmd.Instructions,
		Value:        cmd.Value,
	}, h.policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("%s: failed to save task: %w", op, err)
	}

	if t.IsOverdue(h.policy.Now()) {
		h.log.Warn("task created past its due date",
			logger.TaskID(t.ID()),
			zap.Time("due_date", t.DueDate()),
		)
	}
	h.log.Info("task created", logger.TaskID(t.ID()), logger.EnrollmentID(e.ID()))

	return &TaskResult{Task: t}, nil
}

// Start moves a task from Todo to InProgress.
func (h *TaskHandler) Start(ctx context.Context, cmd StartTaskCommand) (*TaskResult, error) {
	const op = "start_task"

	return h.update(ctx, op, cmd.TaskID, func(t *task.Task) (*task.Task, error) {
		return t.MarkInProgress()
	})
}

// Complete marks a task Done and optionally grades it.
func (h *TaskHandler) Complete(ctx context.Context, cmd CompleteTaskCommand) (*TaskResult, error) {
	const op = "complete_task"

	at := cmd.CompletedAt
	if at.IsZero() {
		at = h.policy.Now()
	}

	return h.update(ctx, op, cmd.TaskID, func(t *task.Task) (*task.Task, error) {
		done, err := t.MarkDone(at)
		if err != nil || cmd.Value == nil {
			return done, err
		}
		return done.WithValue(*cmd.Value)
	})
}

func (h *TaskHandler) update(ctx context.Context, op string, id uuid.UUID, change func(*task.Task) (*task.Task, error)) (*TaskResult, error) {
	current, err := h.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load task: %w", op, err)
	}
	if current == nil {
		return nil, notFound(op, "task", id)
	}

	next, err := change(current)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.tasks.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%s: failed to save task: %w", op, err)
	}

	h.log.Info("task updated", logger.TaskID(next.ID()), logger.Status(next.Status()))
	return &TaskResult{Task: next}, nil
}
