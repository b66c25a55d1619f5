// Package query contains read operations.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
	"github.com/unadm-hub/academic-core/internal/domain/task"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK CALENDAR QUERY
// Collects the tasks of one enrollment in due-date order, together with the
// subject and period they belong to, for calendar feeds.
// ══════════════════════════════════════════════════════════════════════════════

// TaskCalendarQuery selects the enrollment whose tasks are listed.
type TaskCalendarQuery struct {
	EnrollmentID uuid.UUID

	// PendingOnly drops Done tasks.
	PendingOnly bool
}

// Validate checks the query parameters.
func (q TaskCalendarQuery) Validate() error {
	if q.EnrollmentID == uuid.Nil {
		return errors.New("enrollment_id is required")
	}
	return nil
}

// TaskEntryDTO is one task of the calendar.
type TaskEntryDTO struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Instructions string     `json:"instructions,omitempty"`
	DueDate      time.Time  `json:"due_date"`
	Status       string     `json:"status"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Value        *int       `json:"value,omitempty"`
	Overdue      bool       `json:"overdue"`
}

// TaskCalendarDTO is the answer to TaskCalendarQuery.
type TaskCalendarDTO struct {
	EnrollmentID uuid.UUID      `json:"enrollment_id"`
	SubjectCode  string         `json:"subject_code"`
	SubjectName  string         `json:"subject_name"`
	Period       string         `json:"period"`
	Tasks        []TaskEntryDTO `json:"tasks"`
}

// Name is a short calendar title such as "15141101 Fundamentos de programación (2601)".
func (c *TaskCalendarDTO) Name() string {
	return fmt.Sprintf("%s %s (%s)", c.SubjectCode, c.SubjectName, c.Period)
}

// TaskCalendarHandler handles TaskCalendarQuery.
type TaskCalendarHandler struct {
	subjects    subject.Repository
	enrollments enrollment.Repository
	tasks       task.Repository
	now         func() time.Time
	log         *zap.Logger
}

// NewTaskCalendarHandler creates a new TaskCalendarHandler. A nil now means
// time.Now.
func NewTaskCalendarHandler(
	subjects subject.Repository,
	enrollments enrollment.Repository,
	tasks task.Repository,
	now func() time.Time,
	log *zap.Logger,
) *TaskCalendarHandler {
	if now == nil {
		now = time.Now
	}
	return &TaskCalendarHandler{
		subjects:    subjects,
		enrollments: enrollments,
		tasks:       tasks,
		now:         now,
		log:         log.With(logger.Component("task_calendar")),
	}
}

// Handle loads the calendar. An unknown enrollment, or one whose subject is
// missing, fails with shared.ErrNotFound.
func (h *TaskCalendarHandler) Handle(ctx context.Context, q TaskCalendarQuery) (*TaskCalendarDTO, error) {
	const op = "task_calendar"

	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e, err := h.enrollments.GetByID(ctx, q.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load enrollment: %w", op, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%s: enrollment %s: %w", op, q.EnrollmentID, shared.ErrNotFound)
	}

	s, err := h.subjects.GetByID(ctx, e.SubjectID())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load subject: %w", op, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: subject %s: %w", op, e.SubjectID(), shared.ErrNotFound)
	}

	tasks, err := h.tasks.GetByEnrollment(ctx, e.ID())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load tasks: %w", op, err)
	}

	now := h.now()
	entries := make([]TaskEntryDTO, 0, len(tasks))
	for _, t := range tasks {
		if q.PendingOnly && t.Status() == task.StatusDone {
			continue
		}
		entries = append(entries, toTaskEntry(t, now))
	}

	h.log.Debug("task calendar built",
		logger.EnrollmentID(e.ID()),
		zap.Int("tasks", len(entries)),
	)

	return &TaskCalendarDTO{
		EnrollmentID: e.ID(),
		SubjectCode:  s.Code().String(),
		SubjectName:  s.Name(),
		Period:       e.Period().String(),
		Tasks:        entries,
	}, nil
}

func toTaskEntry(t *task.Task, now time.Time) TaskEntryDTO {
	entry := TaskEntryDTO{
		ID:           t.ID(),
		Title:        t.Title(),
		Instructions: t.Instructions(),
		DueDate:      t.DueDate(),
		Status:       t.Status().String(),
		Overdue:      t.IsOverdue(now),
	}
	if at, ok := t.CompletedAt(); ok {
		entry.CompletedAt = &at
	}
	if v, ok := t.Value(); ok {
		value := v.Int()
		entry.Value = &value
	}
	return entry
}
