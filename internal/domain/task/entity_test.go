package task

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedPolicy(p DueDatePolicy) Policy {
	return Policy{DueDate: p, Now: func() time.Time { return now }}
}

func validParams() NewTaskParams {
	return NewTaskParams{
		ID:           uuid.New(),
		EnrollmentID: uuid.New(),
		DueDate:      now.Add(72 * time.Hour),
		Title:        "Identificar problemas socioeconómicos",
		Instructions: "Subir la tarea en formato .docx",
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestNew_Defaults(t *testing.T) {
	task, err := New(validParams(), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, StatusTodo, task.Status())
	_, done := task.CompletedAt()
	assert.False(t, done)
	_, graded := task.Value()
	assert.False(t, graded)
	assert.Equal(t, "Subir la tarea en formato .docx", task.Instructions())
}

func TestNew_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewTaskParams)
		kind   error
	}{
		{"nil id", func(p *NewTaskParams) { p.ID = uuid.Nil }, shared.ErrInvalidID},
		{"nil enrollment", func(p *NewTaskParams) { p.EnrollmentID = uuid.Nil }, shared.ErrInvalidID},
		{"zero due date", func(p *NewTaskParams) { p.DueDate = time.Time{} }, shared.ErrEmptyValue},
		{"short title", func(p *NewTaskParams) { p.Title = "Tarea 1" }, shared.ErrValueOutOfRange},
		{"long title", func(p *NewTaskParams) { p.Title = strings.Repeat("t", 101) }, shared.ErrValueOutOfRange},
		{"value above 100", func(p *NewTaskParams) { v := 101; p.Value = &v }, shared.ErrValueOutOfRange},
		{"negative value", func(p *NewTaskParams) { v := -1; p.Value = &v }, shared.ErrValueOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			task, err := New(params, DefaultPolicy())
			assert.Nil(t, task)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestProgressFor_CompletedAtCoupling(t *testing.T) {
	_, err := ProgressFor(StatusDone, nil)
	assert.True(t, shared.IsInvariantViolation(err))

	p, err := ProgressFor(StatusDone, timePtr(now))
	require.NoError(t, err)
	at, ok := p.CompletedAt()
	assert.True(t, ok)
	assert.Equal(t, now, at)

	_, err = ProgressFor(StatusTodo, timePtr(now))
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = ProgressFor(StatusInProgress, timePtr(now))
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = ProgressFor(StatusDone, timePtr(time.Time{}))
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = ProgressFor(Status(4), nil)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestNew_DoneRequiresCompletedAt(t *testing.T) {
	params := validParams()
	params.Progress = Done{}

	_, err := New(params, DefaultPolicy())
	assert.True(t, shared.IsInvariantViolation(err))

	params.Progress, err = ProgressFor(StatusDone, timePtr(now))
	require.NoError(t, err)

	task, err := New(params, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, StatusDone, task.Status())
}

func TestDueDatePolicy(t *testing.T) {
	params := validParams()
	params.DueDate = now.Add(-time.Hour)

	task, err := New(params, fixedPolicy(DueDateInformational))
	require.NoError(t, err)
	assert.True(t, task.IsOverdue(now))

	_, err = New(params, fixedPolicy(DueDateReject))
	assert.ErrorIs(t, err, shared.ErrExpired)

	params.DueDate = now
	_, err = New(params, fixedPolicy(DueDateReject))
	assert.ErrorIs(t, err, shared.ErrExpired, "due exactly now counts as expired")

	params.DueDate = now.Add(-time.Hour)
	restored, err := Restore(params)
	require.NoError(t, err, "restore never applies the creation policy")
	assert.True(t, restored.IsOverdue(now))
}

func TestIsOverdue_DoneTaskIsNeverOverdue(t *testing.T) {
	params := validParams()
	params.DueDate = now.Add(-time.Hour)
	task, err := Restore(params)
	require.NoError(t, err)

	done, err := task.MarkDone(now)
	require.NoError(t, err)
	assert.False(t, done.IsOverdue(now.Add(time.Hour)))
}

func TestParseDueDatePolicy(t *testing.T) {
	p, err := ParseDueDatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DueDateInformational, p)

	p, err = ParseDueDatePolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, DueDateReject, p)

	_, err = ParseDueDatePolicy("block")
	assert.Error(t, err)
}

func TestStateMachine(t *testing.T) {
	todo, err := New(validParams(), DefaultPolicy())
	require.NoError(t, err)

	started, err := todo.MarkInProgress()
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status())
	assert.Equal(t, StatusTodo, todo.Status(), "receiver is unchanged")

	done, err := started.MarkDone(now)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status())
	at, ok := done.CompletedAt()
	assert.True(t, ok)
	assert.Equal(t, now, at)

	direct, err := todo.MarkDone(now)
	require.NoError(t, err, "Todo can skip InProgress")
	assert.Equal(t, StatusDone, direct.Status())

	_, err = started.MarkInProgress()
	assert.True(t, shared.IsStateTransition(err))

	_, err = done.MarkInProgress()
	assert.True(t, shared.IsStateTransition(err))

	_, err = done.MarkDone(now.Add(time.Hour))
	assert.True(t, shared.IsStateTransition(err))

	_, err = started.TransitionTo(Todo{})
	assert.True(t, shared.IsStateTransition(err))
}

func TestTransitions_AtomicCoupling(t *testing.T) {
	todo, err := New(validParams(), DefaultPolicy())
	require.NoError(t, err)

	_, err = todo.MarkDone(time.Time{})
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = todo.TransitionToStatus(StatusDone, nil)
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = todo.TransitionToStatus(StatusInProgress, timePtr(now))
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = todo.TransitionTo(Done{})
	assert.True(t, shared.IsInvariantViolation(err))

	next, err := todo.TransitionToStatus(StatusDone, timePtr(now))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, next.Status())
}

func TestNormalizeProgress(t *testing.T) {
	p, err := NormalizeProgress(StatusTodo, timePtr(now), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, p.Status())
	at, _ := p.CompletedAt()
	assert.Equal(t, now, at, "supplied completion time is kept")

	p, err = NormalizeProgress(StatusDone, nil, now)
	require.NoError(t, err)
	at, ok := p.CompletedAt()
	assert.True(t, ok)
	assert.Equal(t, now, at)

	p, err = NormalizeProgress(StatusInProgress, nil, now)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, p.Status())

	_, err = NormalizeProgress(Status(0), nil, now)
	assert.Error(t, err)
}

func TestWithValue(t *testing.T) {
	task, err := New(validParams(), DefaultPolicy())
	require.NoError(t, err)

	graded, err := task.WithValue(95)
	require.NoError(t, err)
	v, ok := graded.Value()
	assert.True(t, ok)
	assert.Equal(t, shared.Grade(95), v)

	_, ok = task.Value()
	assert.False(t, ok, "receiver is unchanged")

	_, err = task.WithValue(101)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestParams_RoundTrip(t *testing.T) {
	params := validParams()
	v := 80
	params.Value = &v

	task, err := New(params, DefaultPolicy())
	require.NoError(t, err)

	again, err := Restore(task.Params())
	require.NoError(t, err)
	assert.Equal(t, task, again)
}
