// Package task models gradable assignments that belong to one enrollment.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

const domainName = "task"

const (
	MinTitleLength = 10
	MaxTitleLength = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// POLICIES
// ══════════════════════════════════════════════════════════════════════════════

// DueDatePolicy decides what creating a task with an elapsed due date does.
type DueDatePolicy string

const (
	// DueDateInformational accepts the task; IsOverdue reports it.
	DueDateInformational DueDatePolicy = "informational"
	// DueDateReject fails creation with ErrExpired.
	DueDateReject DueDatePolicy = "reject"
)

// IsValid checks that the policy is one of the known values.
func (p DueDatePolicy) IsValid() bool {
	return p == DueDateInformational || p == DueDateReject
}

// ParseDueDatePolicy reads a policy name; the empty string means informational.
func ParseDueDatePolicy(s string) (DueDatePolicy, error) {
	p := DueDatePolicy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return DueDateInformational, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("unknown due date policy %q", s)
	}
	return p, nil
}

// Policy carries the creation-time rules for New.
type Policy struct {
	DueDate DueDatePolicy
	Now     func() time.Time
}

// DefaultPolicy accepts elapsed due dates and reads the wall clock.
func DefaultPolicy() Policy {
	return Policy{DueDate: DueDateInformational, Now: time.Now}
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: TASK
// ══════════════════════════════════════════════════════════════════════════════

// Task is immutable; transitions return a new value.
type Task struct {
	id           uuid.UUID
	enrollmentID uuid.UUID
	dueDate      time.Time
	title        string
	instructions string
	progress     Progress
	value        shared.Grade
	hasValue     bool
}

// NewTaskParams contains the fields of a task. A nil Progress means Todo and a
// nil Value means the task has not been graded.
type NewTaskParams struct {
	ID           uuid.UUID
	EnrollmentID uuid.UUID
	DueDate      time.Time
	Title        string
	Instructions string
	Progress     Progress
	Value        *int
}

// New creates a task and applies the creation policy to its due date.
func New(params NewTaskParams, policy Policy) (*Task, error) {
	t, err := Restore(params)
	if err != nil {
		return nil, err
	}

	if policy.DueDate == DueDateReject && !t.dueDate.After(policy.now()) {
		return nil, shared.NewDomainError(domainName, "New", shared.ErrExpired,
			fmt.Sprintf("task is already expired (due %s)", t.dueDate.Format(time.RFC3339)))
	}
	return t, nil
}

// Restore validates params without any creation policy. Storage adapters use
// it to rebuild tasks whose due date has legitimately passed.
func Restore(params NewTaskParams) (*Task, error) {
	const op = "New"

	if err := shared.ValidateID(domainName, op, "id", params.ID); err != nil {
		return nil, err
	}
	if err := shared.ValidateID(domainName, op, "enrollment", params.EnrollmentID); err != nil {
		return nil, err
	}
	if params.DueDate.IsZero() {
		return nil, shared.FieldError(domainName, op, "due_date", shared.ErrEmptyValue, "is required")
	}

	title, err := shared.BoundedText(domainName, op, "title", params.Title, MinTitleLength, MaxTitleLength)
	if err != nil {
		return nil, err
	}

	progress := params.Progress
	if progress == nil {
		progress = Todo{}
	}
	if err := progress.validate(op); err != nil {
		return nil, err
	}

	t := &Task{
		id:           params.ID,
		enrollmentID: params.EnrollmentID,
		dueDate:      params.DueDate,
		title:        title,
		instructions: strings.TrimSpace(params.Instructions),
		progress:     progress,
	}

	if params.Value != nil {
		g, err := gradeValue(op, *params.Value)
		if err != nil {
			return nil, err
		}
		t.value, t.hasValue = g, true
	}
	return t, nil
}

func gradeValue(op string, v int) (shared.Grade, error) {
	g := shared.Grade(v)
	if !g.IsValid() {
		return 0, shared.FieldError(domainName, op, "value", shared.ErrValueOutOfRange, "must be between 0 and 100")
	}
	return g, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

func (t *Task) ID() uuid.UUID           { return t.id }
func (t *Task) EnrollmentID() uuid.UUID { return t.enrollmentID }
func (t *Task) DueDate() time.Time      { return t.dueDate }
func (t *Task) Title() string           { return t.title }
func (t *Task) Instructions() string    { return t.instructions }
func (t *Task) Progress() Progress      { return t.progress }
func (t *Task) Status() Status          { return t.progress.Status() }

// CompletedAt returns the completion time of a Done task.
func (t *Task) CompletedAt() (time.Time, bool) {
	return t.progress.CompletedAt()
}

// Value returns the grade obtained on the task, if it has been graded.
func (t *Task) Value() (shared.Grade, bool) {
	return t.value, t.hasValue
}

// IsOverdue reports whether the task is unfinished and its due date is before now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status() != StatusDone && t.dueDate.Before(now)
}

// Params returns the fields of the task, ready to be changed and passed back
// to Restore.
func (t *Task) Params() NewTaskParams {
	p := NewTaskParams{
		ID:           t.id,
		EnrollmentID: t.enrollmentID,
		DueDate:      t.dueDate,
		Title:        t.title,
		Instructions: t.instructions,
		Progress:     t.progress,
	}
	if t.hasValue {
		v := t.value.Int()
		p.Value = &v
	}
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// TransitionTo returns a copy of the task with the given progress.
// Allowed moves: Todo to InProgress, Todo to Done, InProgress to Done.
func (t *Task) TransitionTo(next Progress) (*Task, error) {
	const op = "TransitionTo"

	if next == nil {
		return nil, shared.FieldError(domainName, op, "progress", shared.ErrEmptyValue, "is required")
	}
	if err := next.validate(op); err != nil {
		return nil, err
	}
	if !canMove(t.Status(), next.Status()) {
		return nil, shared.NewDomainError(domainName, op, shared.ErrStateTransition,
			fmt.Sprintf("cannot move task from %s to %s", t.Status(), next.Status()))
	}

	clone := *t
	clone.progress = next
	return &clone, nil
}

func canMove(from, to Status) bool {
	switch from {
	case StatusTodo:
		return to == StatusInProgress || to == StatusDone
	case StatusInProgress:
		return to == StatusDone
	default:
		return false
	}
}

// TransitionToStatus is TransitionTo for a flat (status, completed_at) pair.
func (t *Task) TransitionToStatus(status Status, completedAt *time.Time) (*Task, error) {
	next, err := ProgressFor(status, completedAt)
	if err != nil {
		return nil, err
	}
	return t.TransitionTo(next)
}

// MarkInProgress starts a Todo task.
func (t *Task) MarkInProgress() (*Task, error) {
	return t.TransitionTo(InProgress{})
}

// MarkDone finishes the task at the given instant.
func (t *Task) MarkDone(completedAt time.Time) (*Task, error) {
	next, err := NewDone(completedAt)
	if err != nil {
		return nil, err
	}
	return t.TransitionTo(next)
}

// WithValue returns a copy of the task graded with value.
func (t *Task) WithValue(value int) (*Task, error) {
	g, err := gradeValue("WithValue", value)
	if err != nil {
		return nil, err
	}
	clone := *t
	clone.value, clone.hasValue = g, true
	return &clone, nil
}

// String returns a short representation for logging.
func (t *Task) String() string {
	return fmt.Sprintf("Task{ID: %s, Enrollment: %s, Title: %s, Status: %s}",
		t.id, t.enrollmentID, t.title, t.Status())
}
