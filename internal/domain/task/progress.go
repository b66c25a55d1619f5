package task

import (
	"fmt"
	"time"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the flat status of a task as stored and exchanged.
type Status int

const (
	StatusTodo       Status = 1
	StatusInProgress Status = 2
	StatusDone       Status = 3
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	return s >= StatusTodo && s <= StatusDone
}

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusTodo:
		return "Todo"
	case StatusInProgress:
		return "InProgress"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS (status + completed_at as one value)
// ══════════════════════════════════════════════════════════════════════════════

// Progress couples a task status with its completion time.
// Only Done carries a completion time.
type Progress interface {
	Status() Status
	// CompletedAt returns when the task was finished; ok is false unless Done.
	CompletedAt() (at time.Time, ok bool)

	validate(op string) error
}

// Todo is a task nobody has started.
type Todo struct{}

// InProgress is a started task.
type InProgress struct{}

// Done is a finished task. Build it with NewDone.
type Done struct {
	completedAt time.Time
}

func (Todo) Status() Status                       { return StatusTodo }
func (Todo) CompletedAt() (time.Time, bool)       { return time.Time{}, false }
func (Todo) validate(string) error                { return nil }
func (InProgress) Status() Status                 { return StatusInProgress }
func (InProgress) CompletedAt() (time.Time, bool) { return time.Time{}, false }
func (InProgress) validate(string) error          { return nil }
func (Done) Status() Status                       { return StatusDone }
func (d Done) CompletedAt() (time.Time, bool)     { return d.completedAt, true }

func (d Done) validate(op string) error {
	if d.completedAt.IsZero() {
		return shared.InvariantError(domainName, op, "Done task must have a completion time")
	}
	return nil
}

// NewDone builds a Done progress completed at the given instant.
func NewDone(completedAt time.Time) (Done, error) {
	d := Done{completedAt: completedAt}
	if err := d.validate("NewDone"); err != nil {
		return Done{}, err
	}
	return d, nil
}

// ProgressFor maps a flat (status, completed_at) pair onto a Progress.
// A completion time is required for Done and forbidden for anything else.
func ProgressFor(status Status, completedAt *time.Time) (Progress, error) {
	const op = "ProgressFor"

	switch status {
	case StatusTodo, StatusInProgress:
		if completedAt != nil {
			return nil, shared.InvariantError(domainName, op,
				fmt.Sprintf("%s task cannot have a completion time", status))
		}
		if status == StatusTodo {
			return Todo{}, nil
		}
		return InProgress{}, nil
	case StatusDone:
		if completedAt == nil {
			return nil, shared.InvariantError(domainName, op, "Done task must have a completion time")
		}
		d, err := NewDone(*completedAt)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, shared.FieldError(domainName, op, "status", shared.ErrValueOutOfRange, "must be between 1 and 3")
	}
}

// NormalizeProgress forces a flat pair into agreement instead of rejecting it:
// a completion time makes the task Done, and a Done task without one is
// completed at now. Callers opt into this explicitly, for example when
// importing records from a source that only tracks one of the two.
func NormalizeProgress(status Status, completedAt *time.Time, now time.Time) (Progress, error) {
	switch {
	case completedAt != nil:
		return ProgressFor(StatusDone, completedAt)
	case status == StatusDone:
		return ProgressFor(StatusDone, &now)
	default:
		return ProgressFor(status, nil)
	}
}
