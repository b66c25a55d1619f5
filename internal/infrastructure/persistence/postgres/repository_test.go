package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unadm-hub/academic-core/config"
	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
	"github.com/unadm-hub/academic-core/internal/domain/task"
)

// ── Fakes ──

// fakeRow copies values into Scan destinations by reflection.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeRows struct {
	rows   []fakeRow
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.rows[r.pos-1].Scan(dest...)
}

type fakeQuerier struct {
	execSQL  string
	execArgs []any
	execErr  error

	queryArgs []any
	row       fakeRow
	rows      *fakeRows
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execSQL, q.execArgs = sql, args
	return pgconn.CommandTag{}, q.execErr
}

func (q *fakeQuerier) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	q.queryArgs = args
	if q.rows == nil {
		q.rows = &fakeRows{}
	}
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.queryArgs = args
	return q.row
}

func intPtr(v int) *int { return &v }

// ── Subject ──

func subjectRow(id uuid.UUID, code string, prereqs []uuid.UUID) fakeRow {
	return fakeRow{values: []any{id, 1, 1, 1, code, "DFPR", "Fundamentos de programación", 6.0, prereqs}}
}

func TestScanSubject(t *testing.T) {
	id, prereq := uuid.New(), uuid.New()

	s, err := scanSubject(subjectRow(id, "15141101", []uuid.UUID{prereq}))
	require.NoError(t, err)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, shared.SubjectCode("15141101"), s.Code())
	assert.Equal(t, subject.CreditsSix, s.Credits())
	assert.True(t, s.HasPrerequisite(prereq))
}

func TestScanSubject_InvalidStoredRow(t *testing.T) {
	_, err := scanSubject(subjectRow(uuid.New(), "15149101", nil))
	assert.ErrorIs(t, err, shared.ErrInvalidSubjectCode)
}

func TestSubjectRepository_GetByID(t *testing.T) {
	id := uuid.New()
	q := &fakeQuerier{row: subjectRow(id, "15141101", nil)}
	repo := NewSubjectRepository(q)

	s, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []any{id}, q.queryArgs)
}

func TestSubjectRepository_GetByCode_Absent(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewSubjectRepository(q)

	s, err := repo.GetByCode(context.Background(), "15141101")
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, []any{"15141101"}, q.queryArgs)
}

func TestSubjectRepository_GetByID_DriverError(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}
	repo := NewSubjectRepository(q)

	s, err := repo.GetByID(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestSubjectRepository_Save(t *testing.T) {
	prereq := uuid.New()
	s, err := subject.New(subject.NewSubjectParams{
		ID:            uuid.New(),
		Module:        subject.ModuleDisciplinary,
		Semester:      3,
		Block:         subject.BlockSecond,
		Code:          "15142301",
		Name:          "Estructura de datos",
		Credits:       subject.CreditsSixAndHalf,
		Prerequisites: []uuid.UUID{prereq},
	})
	require.NoError(t, err)

	q := &fakeQuerier{}
	require.NoError(t, NewSubjectRepository(q).Save(context.Background(), s))

	assert.Contains(t, q.execSQL, "ON CONFLICT (id) DO UPDATE")
	assert.Equal(t, []any{s.ID(), 2, 3, 2, "15142301", "", "Estructura de datos", 6.5, []uuid.UUID{prereq}}, q.execArgs)
}

func TestSubjectRepository_Save_DuplicateCode(t *testing.T) {
	s, err := subject.New(subject.NewSubjectParams{
		ID: uuid.New(), Module: 1, Semester: 1, Code: "15141101", Name: "Álgebra", Credits: subject.CreditsFive,
	})
	require.NoError(t, err)

	q := &fakeQuerier{execErr: &pgconn.PgError{Code: "23505"}}
	err = NewSubjectRepository(q).Save(context.Background(), s)
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Contains(t, err.Error(), "already registered")
}

func TestSubjectRepository_ListAll_Empty(t *testing.T) {
	q := &fakeQuerier{}
	list, err := NewSubjectRepository(q).ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.True(t, q.rows.closed)
}

// ── Enrollment ──

func enrollmentRow(id uuid.UUID, status int, result *int) fakeRow {
	var r any
	if result != nil {
		r = result
	}
	return fakeRow{values: []any{id, uuid.New(), "2601", 3, "Dra. Laura Méndez", "Mtro. Carlos Ruiz", 1, status, r}}
}

func TestScanEnrollment(t *testing.T) {
	id := uuid.New()
	e, err := scanEnrollment(enrollmentRow(id, 3, intPtr(88)))
	require.NoError(t, err)
	assert.Equal(t, id, e.ID())
	assert.Equal(t, enrollment.StatusCompleted, e.Status())
	assert.True(t, e.IsApproved())
}

func TestScanEnrollment_RejectsInconsistentRow(t *testing.T) {
	_, err := scanEnrollment(enrollmentRow(uuid.New(), 1, intPtr(75)))
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = scanEnrollment(enrollmentRow(uuid.New(), 3, intPtr(59)))
	assert.True(t, shared.IsInvariantViolation(err))

	_, err = scanEnrollment(enrollmentRow(uuid.New(), 4, nil))
	assert.True(t, shared.IsInvariantViolation(err))
}

func TestEnrollmentRepository_GetByStatus(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: []fakeRow{
		enrollmentRow(uuid.New(), 4, intPtr(40)),
		enrollmentRow(uuid.New(), 4, intPtr(10)),
	}}}

	list, err := NewEnrollmentRepository(q).GetByStatus(context.Background(), enrollment.StatusFailed)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, []any{4}, q.queryArgs)
	assert.True(t, q.rows.closed)
}

func TestEnrollmentRepository_Save(t *testing.T) {
	e, err := enrollment.New(enrollment.NewEnrollmentParams{
		ID: uuid.New(), SubjectID: uuid.New(), Period: "2602",
		Professor: "Dra. Laura Méndez", Advisor: "Mtro. Carlos Ruiz",
	})
	require.NoError(t, err)
	e, err = e.Fail(45)
	require.NoError(t, err)

	q := &fakeQuerier{}
	require.NoError(t, NewEnrollmentRepository(q).Save(context.Background(), e))
	assert.Equal(t, 4, q.execArgs[7])
	assert.Equal(t, intPtr(45), q.execArgs[8])

	q.execErr = &pgconn.PgError{Code: "23503"}
	err = NewEnrollmentRepository(q).Save(context.Background(), e)
	assert.True(t, IsForeignKeyViolation(err))
}

// ── Task ──

func TestScanTask(t *testing.T) {
	id := uuid.New()
	due := time.Date(2026, 1, 30, 22, 59, 0, 0, time.UTC)
	done := due.Add(-time.Hour)
	instructions := "Subir la tarea en formato .docx"

	tk, err := scanTask(fakeRow{values: []any{id, uuid.New(), due, "Identificar problemas socioeconómicos", &instructions, 3, &done, intPtr(90)}})
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, tk.Status())
	at, ok := tk.CompletedAt()
	assert.True(t, ok)
	assert.Equal(t, done, at)
	assert.Equal(t, instructions, tk.Instructions())
	v, ok := tk.Value()
	assert.True(t, ok)
	assert.Equal(t, shared.Grade(90), v)
}

func TestScanTask_PastDueLoads(t *testing.T) {
	due := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tk, err := scanTask(fakeRow{values: []any{uuid.New(), uuid.New(), due, "Tarea vencida hace tiempo", nil, 1, nil, nil}})
	require.NoError(t, err)
	assert.True(t, tk.IsOverdue(time.Now()))
}

func TestScanTask_RejectsInconsistentRow(t *testing.T) {
	due := time.Now().Add(time.Hour)
	_, err := scanTask(fakeRow{values: []any{uuid.New(), uuid.New(), due, "Identificar problemas", nil, 3, nil, nil}})
	assert.True(t, shared.IsInvariantViolation(err))
}

func TestTaskRepository_SaveAndGetTodo(t *testing.T) {
	tk, err := task.New(task.NewTaskParams{
		ID:           uuid.New(),
		EnrollmentID: uuid.New(),
		DueDate:      time.Now().Add(24 * time.Hour),
		Title:        "Identificar problemas socioeconómicos",
	}, task.DefaultPolicy())
	require.NoError(t, err)

	q := &fakeQuerier{}
	repo := NewTaskRepository(q)
	require.NoError(t, repo.Save(context.Background(), tk))
	assert.Nil(t, q.execArgs[4], "empty instructions are stored as NULL")
	assert.Nil(t, q.execArgs[6], "Todo has no completion time")

	list, err := repo.GetTodo(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []any{int(task.StatusTodo)}, q.queryArgs)
}

func TestGetMigrations_Ordered(t *testing.T) {
	migrations := GetMigrations()
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.DSN(), "dbname=academic_core")

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "app", Name: "academic", SSLMode: "require",
		MaxConns: 20, MinConns: 4, ConnectTimeout: 5 * time.Second, ConnectAttempts: 2,
	})

	assert.Equal(t, "academic", cfg.Database)
	assert.Equal(t, int32(20), cfg.MaxConns)
	assert.Equal(t, 2, cfg.ConnectAttempts)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod, "unmapped fields keep their defaults")
	assert.Contains(t, cfg.DSN(), "host=db port=5433 dbname=academic user=app")
	assert.Contains(t, cfg.DSN(), "connect_timeout=5")
}
