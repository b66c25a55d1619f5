package enrollment

import (
	"fmt"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the flat status of an enrollment as stored and exchanged.
type Status int

const (
	StatusActive    Status = 1
	StatusDropped   Status = 2
	StatusCompleted Status = 3
	StatusFailed    Status = 4
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	return s >= StatusActive && s <= StatusFailed
}

// IsTerminal reports whether no further transition is defined from s.
func (s Status) IsTerminal() bool {
	return s == StatusDropped || s == StatusCompleted || s == StatusFailed
}

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusDropped:
		return "Dropped"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MinPassingGrade is the lowest result that completes an enrollment.
const MinPassingGrade shared.Grade = 60

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME (status + result as one value)
// ══════════════════════════════════════════════════════════════════════════════

// Outcome couples a status with exactly the result that status allows.
// The variants are Active, Dropped, Completed and Failed.
type Outcome interface {
	Status() Status
	// Result returns the final grade; ok is false for Active and Dropped.
	Result() (grade shared.Grade, ok bool)

	validate(op string) error
}

// Active is an enrollment in progress. It carries no result.
type Active struct{}

// Dropped is an abandoned enrollment. It carries no result.
type Dropped struct{}

// Completed is a passed enrollment. Build it with NewCompleted.
type Completed struct {
	result shared.Grade
}

// Failed is a failed enrollment. Build it with NewFailed.
type Failed struct {
	result shared.Grade
}

func (Active) Status() Status                    { return StatusActive }
func (Active) Result() (shared.Grade, bool)      { return 0, false }
func (Active) validate(string) error             { return nil }
func (Dropped) Status() Status                   { return StatusDropped }
func (Dropped) Result() (shared.Grade, bool)     { return 0, false }
func (Dropped) validate(string) error            { return nil }
func (Completed) Status() Status                 { return StatusCompleted }
func (c Completed) Result() (shared.Grade, bool) { return c.result, true }
func (Failed) Status() Status                    { return StatusFailed }
func (f Failed) Result() (shared.Grade, bool)    { return f.result, true }

func (c Completed) validate(op string) error {
	if !c.result.IsValid() {
		return shared.FieldError(domainName, op, "result", shared.ErrValueOutOfRange, "must be between 0 and 100")
	}
	if c.result < MinPassingGrade {
		return shared.InvariantError(domainName, op,
			fmt.Sprintf("Completed enrollment requires result >= %d, got %d", MinPassingGrade, c.result))
	}
	return nil
}

func (f Failed) validate(op string) error {
	if !f.result.IsValid() {
		return shared.FieldError(domainName, op, "result", shared.ErrValueOutOfRange, "must be between 0 and 100")
	}
	if f.result >= MinPassingGrade {
		return shared.InvariantError(domainName, op,
			fmt.Sprintf("Failed enrollment requires result < %d, got %d", MinPassingGrade, f.result))
	}
	return nil
}

// NewCompleted builds a Completed outcome; result must be in [60, 100].
func NewCompleted(result int) (Completed, error) {
	c := Completed{result: shared.Grade(result)}
	if err := c.validate("NewCompleted"); err != nil {
		return Completed{}, err
	}
	return c, nil
}

// NewFailed builds a Failed outcome; result must be in [0, 60).
func NewFailed(result int) (Failed, error) {
	f := Failed{result: shared.Grade(result)}
	if err := f.validate("NewFailed"); err != nil {
		return Failed{}, err
	}
	return f, nil
}

// OutcomeFor maps a flat (status, result) pair onto an Outcome.
// The error names the broken rule: a missing result, a result on the wrong
// side of the threshold, or a result where none is allowed.
func OutcomeFor(status Status, result *int) (Outcome, error) {
	const op = "OutcomeFor"

	switch status {
	case StatusActive:
		if result != nil {
			return nil, shared.InvariantError(domainName, op, "Active enrollment cannot have a result")
		}
		return Active{}, nil
	case StatusDropped:
		if result != nil {
			return nil, shared.InvariantError(domainName, op, "Dropped enrollment cannot have a result")
		}
		return Dropped{}, nil
	case StatusCompleted:
		if result == nil {
			return nil, shared.InvariantError(domainName, op, "Completed enrollment must have a result")
		}
		return graded(NewCompleted(*result))
	case StatusFailed:
		if result == nil {
			return nil, shared.InvariantError(domainName, op, "Failed enrollment must have a result")
		}
		return graded(NewFailed(*result))
	default:
		return nil, shared.FieldError(domainName, op, "status", shared.ErrValueOutOfRange, "must be between 1 and 4")
	}
}

// OutcomeForResult picks Completed or Failed from the result against the
// passing threshold.
func OutcomeForResult(result int) (Outcome, error) {
	if shared.Grade(result) >= MinPassingGrade {
		return graded(NewCompleted(result))
	}
	return graded(NewFailed(result))
}

// graded drops the zero variant returned alongside an error.
func graded[T Outcome](o T, err error) (Outcome, error) {
	if err != nil {
		return nil, err
	}
	return o, nil
}
