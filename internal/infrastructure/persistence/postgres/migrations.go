package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns the applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, done := applied[mig.Version]; done {
			continue
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insert, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}

	return count, nil
}

// Rollback rolls back the last applied migration. It returns the version
// rolled back, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	var last int
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return 0, nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return 0, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		del := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, del, last)
		return err
	})
	if err != nil {
		return 0, err
	}
	return last, nil
}

// Status returns every embedded migration marked with whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_subjects",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_enrollments",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_tasks",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// The CHECK constraints repeat the domain rules so rows written by other
// tools cannot break them either.

const migration001Up = `
CREATE TABLE IF NOT EXISTS subjects (
    id UUID PRIMARY KEY,
    module SMALLINT NOT NULL,
    semester SMALLINT NOT NULL,
    block SMALLINT NOT NULL,
    code CHAR(8) NOT NULL UNIQUE,
    acronym VARCHAR(4) NOT NULL DEFAULT '',
    name VARCHAR(100) NOT NULL,
    credits NUMERIC(2,1) NOT NULL,
    prerequisites UUID[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_module CHECK (module BETWEEN 1 AND 4),
    CONSTRAINT valid_semester CHECK (semester BETWEEN 1 AND 8),
    CONSTRAINT valid_block CHECK (block BETWEEN 0 AND 2),
    CONSTRAINT valid_code CHECK (code ~ '^1514[1-4][1-8](0[1-9]|[1-3][0-9]|4[0-6])$'),
    CONSTRAINT valid_acronym CHECK (acronym ~ '^(D[A-Z]{3})?$'),
    CONSTRAINT valid_credits CHECK (credits IN (5.0, 6.0, 6.5)),
    CONSTRAINT no_self_prerequisite CHECK (NOT (id = ANY (prerequisites)))
);

CREATE INDEX IF NOT EXISTS idx_subjects_module_semester ON subjects(module, semester);
`

const migration001Down = `
DROP TABLE IF EXISTS subjects;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE RESTRICT,
    period CHAR(4) NOT NULL,
    group_number INTEGER NOT NULL DEFAULT 0,
    professor VARCHAR(100) NOT NULL,
    advisor VARCHAR(100) NOT NULL,
    attempt SMALLINT NOT NULL DEFAULT 1,
    status SMALLINT NOT NULL DEFAULT 1,
    result SMALLINT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_period CHECK (period ~ '^(2[6-9]|3[0-4])0[12]$'),
    CONSTRAINT valid_group CHECK (group_number >= 0),
    CONSTRAINT valid_attempt CHECK (attempt BETWEEN 1 AND 3),
    CONSTRAINT valid_outcome CHECK (
        (status IN (1, 2) AND result IS NULL) OR
        (status = 3 AND result BETWEEN 60 AND 100) OR
        (status = 4 AND result BETWEEN 0 AND 59)
    )
);

CREATE INDEX IF NOT EXISTS idx_enrollments_period ON enrollments(period);
CREATE INDEX IF NOT EXISTS idx_enrollments_status ON enrollments(status);
CREATE INDEX IF NOT EXISTS idx_enrollments_subject ON enrollments(subject_id);
`

const migration002Down = `
DROP TABLE IF EXISTS enrollments;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY,
    enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    due_date TIMESTAMP WITH TIME ZONE NOT NULL,
    title VARCHAR(100) NOT NULL,
    instructions TEXT,
    status SMALLINT NOT NULL DEFAULT 1,
    completed_at TIMESTAMP WITH TIME ZONE,
    value SMALLINT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_task_status CHECK (status BETWEEN 1 AND 3),
    CONSTRAINT done_iff_completed CHECK ((status = 3) = (completed_at IS NOT NULL)),
    CONSTRAINT valid_value CHECK (value IS NULL OR value BETWEEN 0 AND 100),
    CONSTRAINT valid_title CHECK (char_length(title) >= 10)
);

CREATE INDEX IF NOT EXISTS idx_tasks_enrollment ON tasks(enrollment_id, due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_todo ON tasks(due_date) WHERE status = 1;
`

const migration003Down = `
DROP TABLE IF EXISTS tasks;
`
