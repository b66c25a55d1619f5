package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/task"
	"github.com/unadm-hub/academic-core/internal/infrastructure/persistence/memory"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	subjects    *memory.SubjectRepository
	enrollments *memory.EnrollmentRepository
	tasks       *memory.TaskRepository
	logs        *observer.ObservedLogs

	register *RegisterSubjectHandler
	enroll   *EnrollStudentHandler
	closer   *CloseEnrollmentHandler
	taskH    *TaskHandler
}

func setupTestEnv(t *testing.T, policy task.DueDatePolicy) *testEnv {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	env := &testEnv{
		subjects:    memory.NewSubjectRepository(),
		enrollments: memory.NewEnrollmentRepository(),
		tasks:       memory.NewTaskRepository(),
		logs:        logs,
	}
	env.register = NewRegisterSubjectHandler(env.subjects, log)
	env.enroll = NewEnrollStudentHandler(env.subjects, env.enrollments, log)
	env.closer = NewCloseEnrollmentHandler(env.enrollments, log)
	env.taskH = NewTaskHandler(env.enrollments, env.tasks, task.Policy{
		DueDate: policy,
		Now:     func() time.Time { return testNow },
	}, log)
	return env
}

func fundamentos() RegisterSubjectCommand {
	return RegisterSubjectCommand{
		Module:   1,
		Semester: 1,
		Block:    1,
		Code:     "15141101",
		Name:     "Fundamentos de programación",
		Credits:  6,
	}
}

func (env *testEnv) mustEnroll(t *testing.T) *enrollment.Enrollment {
	t.Helper()
	s, err := env.register.Handle(context.Background(), fundamentos())
	require.NoError(t, err)

	res, err := env.enroll.Handle(context.Background(), EnrollStudentCommand{
		SubjectID: s.Subject.ID(),
		Period:    "2601",
		Group:     2,
		Professor: "Dra. Laura Méndez",
		Advisor:   "Mtro. Jorge Ríos",
	})
	require.NoError(t, err)
	return res.Enrollment
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER SUBJECT
// ══════════════════════════════════════════════════════════════════════════════

func TestRegisterSubject(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)

	base, err := env.register.Handle(ctx, fundamentos())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, base.Subject.ID())

	oop, err := env.register.Handle(ctx, RegisterSubjectCommand{
		Module:            1,
		Semester:          2,
		Block:             1,
		Code:              "15142101",
		Acronym:           "DPOO",
		Name:              "Programación orientada a objetos",
		Credits:           6.5,
		PrerequisiteCodes: []string{"15141101"},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{base.Subject.ID()}, oop.Subject.Prerequisites())

	stored, err := env.subjects.GetByCode(ctx, shared.SubjectCode("15142101"))
	require.NoError(t, err)
	assert.Same(t, oop.Subject, stored)

	assert.Equal(t, 2, env.logs.FilterMessage("subject registered").Len())
}

func TestRegisterSubject_KeepsGivenID(t *testing.T) {
	env := setupTestEnv(t, task.DueDateInformational)
	id := uuid.New()

	cmd := fundamentos()
	cmd.ID = id
	res, err := env.register.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, id, res.Subject.ID())
}

func TestRegisterSubject_Rejects(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)
	_, err := env.register.Handle(ctx, fundamentos())
	require.NoError(t, err)

	_, err = env.register.Handle(ctx, fundamentos())
	assert.True(t, IsAlreadyRegistered(err))

	unknown := fundamentos()
	unknown.Code = "15141102"
	unknown.PrerequisiteCodes = []string{"15141109"}
	_, err = env.register.Handle(ctx, unknown)
	assert.True(t, shared.IsNotFound(err))

	badCode := fundamentos()
	badCode.Code = "1514110"
	_, err = env.register.Handle(ctx, badCode)
	var codeErr *shared.InvalidSubjectCodeError
	assert.True(t, errors.As(err, &codeErr))

	badCredits := fundamentos()
	badCredits.Code = "15141103"
	badCredits.Credits = 4
	_, err = env.register.Handle(ctx, badCredits)
	assert.True(t, shared.IsValidation(err))

	list, err := env.subjects.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestEnrollStudent(t *testing.T) {
	env := setupTestEnv(t, task.DueDateInformational)
	e := env.mustEnroll(t)

	assert.Equal(t, enrollment.StatusActive, e.Status())
	assert.Equal(t, 1, e.Attempt())
	assert.Equal(t, 2, e.Group())

	_, err := env.enroll.Handle(context.Background(), EnrollStudentCommand{
		SubjectID: uuid.New(),
		Period:    "2601",
		Professor: "Dra. Laura Méndez",
		Advisor:   "Mtro. Jorge Ríos",
	})
	assert.True(t, shared.IsNotFound(err))

	_, err = env.enroll.Handle(context.Background(), EnrollStudentCommand{
		SubjectID: e.SubjectID(),
		Period:    "2503",
		Professor: "Dra. Laura Méndez",
		Advisor:   "Mtro. Jorge Ríos",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestGradeEnrollment(t *testing.T) {
	tests := []struct {
		name   string
		result int
		status enrollment.Status
	}{
		{"passing", 85, enrollment.StatusCompleted},
		{"threshold passes", 60, enrollment.StatusCompleted},
		{"below threshold", 59, enrollment.StatusFailed},
		{"zero", 0, enrollment.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := setupTestEnv(t, task.DueDateInformational)
			e := env.mustEnroll(t)

			res, err := env.closer.Grade(ctx, GradeEnrollmentCommand{EnrollmentID: e.ID(), Result: tt.result})
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Enrollment.Status())

			stored, err := env.enrollments.GetByID(ctx, e.ID())
			require.NoError(t, err)
			assert.Equal(t, tt.status, stored.Status())
			assert.Equal(t, enrollment.StatusActive, e.Status(), "original value is untouched")
		})
	}
}

func TestGradeEnrollment_Rejects(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)
	e := env.mustEnroll(t)

	_, err := env.closer.Grade(ctx, GradeEnrollmentCommand{EnrollmentID: e.ID(), Result: 101})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = env.closer.Grade(ctx, GradeEnrollmentCommand{EnrollmentID: uuid.New(), Result: 80})
	assert.True(t, shared.IsNotFound(err))

	_, err = env.closer.Drop(ctx, DropEnrollmentCommand{EnrollmentID: e.ID()})
	require.NoError(t, err)

	_, err = env.closer.Grade(ctx, GradeEnrollmentCommand{EnrollmentID: e.ID(), Result: 80})
	assert.True(t, shared.IsStateTransition(err))

	dropped, err := env.enrollments.GetByStatus(ctx, enrollment.StatusDropped)
	require.NoError(t, err)
	assert.Len(t, dropped, 1)
}

func TestRetake(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)
	e := env.mustEnroll(t)

	_, err := env.enroll.Retake(ctx, RetakeCommand{EnrollmentID: e.ID(), Period: "2602"})
	assert.True(t, shared.IsStateTransition(err), "an Active enrollment cannot be retaken")

	current := e
	for attempt := 2; attempt <= enrollment.MaxAttempt; attempt++ {
		_, err := env.closer.Grade(ctx, GradeEnrollmentCommand{EnrollmentID: current.ID(), Result: 40})
		require.NoError(t, err)

		res, err := env.enroll.Retake(ctx, RetakeCommand{EnrollmentID: current.ID(), Period: "2602"})
		require.NoError(t, err)
		assert.Equal(t, attempt, res.Enrollment.Attempt())
		assert.Equal(t, e.SubjectID(), res.Enrollment.SubjectID())
		current = res.Enrollment
	}

	_, err = env.closer.Grade(ctx, GradeEnrollmentCommand{EnrollmentID: current.ID(), Result: 40})
	require.NoError(t, err)
	_, err = env.enroll.Retake(ctx, RetakeCommand{EnrollmentID: current.ID(), Period: "2701"})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

// ══════════════════════════════════════════════════════════════════════════════
// TASKS
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateTask_Informational(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)
	e := env.mustEnroll(t)

	res, err := env.taskH.Create(ctx, CreateTaskCommand{
		EnrollmentID: e.ID(),
		DueDate:      testNow.AddDate(0, 0, -1),
		Title:        "Actividad integradora 1",
	})
	require.NoError(t, err)
	assert.True(t, res.Task.IsOverdue(testNow))
	assert.Equal(t, 1, env.logs.FilterMessage("task created past its due date").Len())

	todo, err := env.tasks.GetTodo(ctx)
	require.NoError(t, err)
	assert.Len(t, todo, 1)
}

func TestCreateTask_Reject(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateReject)
	e := env.mustEnroll(t)

	_, err := env.taskH.Create(ctx, CreateTaskCommand{
		EnrollmentID: e.ID(),
		DueDate:      testNow,
		Title:        "Actividad integradora 1",
	})
	assert.ErrorIs(t, err, shared.ErrExpired)

	res, err := env.taskH.Create(ctx, CreateTaskCommand{
		EnrollmentID: e.ID(),
		DueDate:      testNow.Add(time.Hour),
		Title:        "Actividad integradora 1",
	})
	require.NoError(t, err)
	assert.False(t, res.Task.IsOverdue(testNow))
	assert.Zero(t, env.logs.FilterMessage("task created past its due date").Len())
}

func TestCreateTask_UnknownEnrollment(t *testing.T) {
	env := setupTestEnv(t, task.DueDateInformational)

	_, err := env.taskH.Create(context.Background(), CreateTaskCommand{
		EnrollmentID: uuid.New(),
		DueDate:      testNow.AddDate(0, 0, 7),
		Title:        "Actividad integradora 1",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)
	e := env.mustEnroll(t)

	created, err := env.taskH.Create(ctx, CreateTaskCommand{
		EnrollmentID: e.ID(),
		DueDate:      testNow.AddDate(0, 0, 7),
		Title:        "Foro de discusión unidad 1",
	})
	require.NoError(t, err)
	id := created.Task.ID()

	started, err := env.taskH.Start(ctx, StartTaskCommand{TaskID: id})
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, started.Task.Status())

	_, err = env.taskH.Start(ctx, StartTaskCommand{TaskID: id})
	assert.True(t, shared.IsStateTransition(err))

	value := 90
	done, err := env.taskH.Complete(ctx, CompleteTaskCommand{TaskID: id, Value: &value})
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, done.Task.Status())
	at, ok := done.Task.CompletedAt()
	assert.True(t, ok)
	assert.Equal(t, testNow, at)
	grade, ok := done.Task.Value()
	assert.True(t, ok)
	assert.Equal(t, 90, grade.Int())

	_, err = env.taskH.Complete(ctx, CompleteTaskCommand{TaskID: id})
	assert.True(t, shared.IsStateTransition(err))

	_, err = env.taskH.Start(ctx, StartTaskCommand{TaskID: uuid.New()})
	assert.True(t, shared.IsNotFound(err))

	stored, err := env.tasks.GetByEnrollment(ctx, e.ID())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, task.StatusDone, stored[0].Status())
}

func TestCompleteTask_BadValueLeavesTaskUnchanged(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, task.DueDateInformational)
	e := env.mustEnroll(t)

	created, err := env.taskH.Create(ctx, CreateTaskCommand{
		EnrollmentID: e.ID(),
		DueDate:      testNow.AddDate(0, 0, 7),
		Title:        "Foro de discusión unidad 1",
	})
	require.NoError(t, err)

	bad := 120
	_, err = env.taskH.Complete(ctx, CompleteTaskCommand{TaskID: created.Task.ID(), Value: &bad})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	stored, err := env.tasks.GetByID(ctx, created.Task.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, stored.Status())
}

func TestNewTaskHandler_DefaultsPolicy(t *testing.T) {
	h := NewTaskHandler(memory.NewEnrollmentRepository(), memory.NewTaskRepository(), task.Policy{}, zap.NewNop())
	assert.Equal(t, task.DueDateInformational, h.policy.DueDate)
	assert.NotNil(t, h.policy.Now)
}
