// Package enrollment models one attempt by a student at a subject in an
// academic period. Status and result travel together as an Outcome, so an
// Enrollment can never hold a combination the curriculum rules forbid.
package enrollment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

const domainName = "enrollment"

const (
	MinAttempt = 1
	MaxAttempt = 3

	MinNameLength = 3
	MaxNameLength = 100
)

// Enrollment is immutable; transitions return a new value.
type Enrollment struct {
	id        uuid.UUID
	subjectID uuid.UUID
	period    shared.Period
	group     int
	professor string
	advisor   string
	attempt   int
	outcome   Outcome
}

// NewEnrollmentParams contains the fields of an enrollment.
// A zero Attempt means the first attempt; a nil Outcome means Active.
type NewEnrollmentParams struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	Period    string
	Group     int
	Professor string
	Advisor   string
	Attempt   int
	Outcome   Outcome
}

// New validates params and builds an Enrollment. It is used both for new
// enrollments and to rehydrate stored ones.
func New(params NewEnrollmentParams) (*Enrollment, error) {
	const op = "New"

	if err := shared.ValidateID(domainName, op, "id", params.ID); err != nil {
		return nil, err
	}
	if err := shared.ValidateID(domainName, op, "subject", params.SubjectID); err != nil {
		return nil, err
	}

	period := shared.Period(params.Period)
	if !period.IsValid() {
		return nil, shared.FieldError(domainName, op, "period", shared.ErrInvalidFormat,
			fmt.Sprintf("%q is not YY01 or YY02 with YY between 26 and 34", params.Period))
	}

	if params.Group < 0 {
		return nil, shared.FieldError(domainName, op, "group", shared.ErrValueOutOfRange, "must not be negative")
	}

	professor, err := shared.BoundedText(domainName, op, "professor", params.Professor, MinNameLength, MaxNameLength)
	if err != nil {
		return nil, err
	}
	advisor, err := shared.BoundedText(domainName, op, "advisor", params.Advisor, MinNameLength, MaxNameLength)
	if err != nil {
		return nil, err
	}

	attempt := params.Attempt
	if attempt == 0 {
		attempt = MinAttempt
	}
	if attempt < MinAttempt || attempt > MaxAttempt {
		return nil, shared.FieldError(domainName, op, "attempt", shared.ErrValueOutOfRange,
			fmt.Sprintf("must be between %d and %d", MinAttempt, MaxAttempt))
	}

	outcome := params.Outcome
	if outcome == nil {
		outcome = Active{}
	}
	if err := outcome.validate(op); err != nil {
		return nil, err
	}

	return &Enrollment{
		id:        params.ID,
		subjectID: params.SubjectID,
		period:    period,
		group:     params.Group,
		professor: professor,
		advisor:   advisor,
		attempt:   attempt,
		outcome:   outcome,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

func (e *Enrollment) ID() uuid.UUID         { return e.id }
func (e *Enrollment) SubjectID() uuid.UUID  { return e.subjectID }
func (e *Enrollment) Period() shared.Period { return e.period }
func (e *Enrollment) Group() int            { return e.group }
func (e *Enrollment) Professor() string     { return e.professor }
func (e *Enrollment) Advisor() string       { return e.advisor }
func (e *Enrollment) Attempt() int          { return e.attempt }
func (e *Enrollment) Outcome() Outcome      { return e.outcome }
func (e *Enrollment) Status() Status        { return e.outcome.Status() }

// Result returns the final grade, if the enrollment has one.
func (e *Enrollment) Result() (shared.Grade, bool) {
	return e.outcome.Result()
}

// ResultPtr returns the result as a nullable int, for storage adapters.
func (e *Enrollment) ResultPtr() *int {
	g, ok := e.outcome.Result()
	if !ok {
		return nil
	}
	v := g.Int()
	return &v
}

// IsApproved reports whether the enrollment has a passing result.
func (e *Enrollment) IsApproved() bool {
	g, ok := e.outcome.Result()
	return ok && g >= MinPassingGrade
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// TransitionTo returns a copy of the enrollment with the given outcome.
// Only Active enrollments move, and only to Dropped, Completed or Failed.
func (e *Enrollment) TransitionTo(next Outcome) (*Enrollment, error) {
	const op = "TransitionTo"

	if next == nil {
		return nil, shared.FieldError(domainName, op, "outcome", shared.ErrEmptyValue, "is required")
	}
	if err := next.validate(op); err != nil {
		return nil, err
	}
	if e.Status() != StatusActive {
		return nil, shared.NewDomainError(domainName, op, shared.ErrStateTransition,
			fmt.Sprintf("%s enrollment is terminal", e.Status()))
	}
	if next.Status() == StatusActive {
		return nil, shared.NewDomainError(domainName, op, shared.ErrStateTransition,
			"enrollment is already Active")
	}

	clone := *e
	clone.outcome = next
	return &clone, nil
}

// TransitionToStatus is TransitionTo for a flat (status, result) pair.
func (e *Enrollment) TransitionToStatus(status Status, result *int) (*Enrollment, error) {
	next, err := OutcomeFor(status, result)
	if err != nil {
		return nil, err
	}
	return e.TransitionTo(next)
}

// Drop abandons an active enrollment.
func (e *Enrollment) Drop() (*Enrollment, error) {
	return e.TransitionTo(Dropped{})
}

// Complete closes an active enrollment with a passing result.
func (e *Enrollment) Complete(result int) (*Enrollment, error) {
	next, err := NewCompleted(result)
	if err != nil {
		return nil, err
	}
	return e.TransitionTo(next)
}

// Fail closes an active enrollment with a failing result.
func (e *Enrollment) Fail(result int) (*Enrollment, error) {
	next, err := NewFailed(result)
	if err != nil {
		return nil, err
	}
	return e.TransitionTo(next)
}

// NextAttempt returns the params for retaking the subject after a Failed or
// Dropped enrollment. It fails once the attempt cap is reached; what happens
// then is up to the caller.
func (e *Enrollment) NextAttempt(id uuid.UUID, period shared.Period) (NewEnrollmentParams, error) {
	const op = "NextAttempt"

	switch e.Status() {
	case StatusFailed, StatusDropped:
	default:
		return NewEnrollmentParams{}, shared.NewDomainError(domainName, op, shared.ErrStateTransition,
			fmt.Sprintf("cannot retake a %s enrollment", e.Status()))
	}
	if e.attempt >= MaxAttempt {
		return NewEnrollmentParams{}, shared.FieldError(domainName, op, "attempt", shared.ErrValueOutOfRange,
			fmt.Sprintf("attempt %d is the last one allowed", e.attempt))
	}

	return NewEnrollmentParams{
		ID:        id,
		SubjectID: e.subjectID,
		Period:    period.String(),
		Professor: e.professor,
		Advisor:   e.advisor,
		Attempt:   e.attempt + 1,
	}, nil
}

// String returns a short representation for logging.
func (e *Enrollment) String() string {
	return fmt.Sprintf("Enrollment{ID: %s, Subject: %s, Period: %s, Attempt: %d, Status: %s}",
		e.id, e.subjectID, e.period, e.attempt, e.Status())
}
