package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMAND
// Opens an Active enrollment in a registered subject for one period.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand contains the data of a new enrollment.
type EnrollStudentCommand struct {
	SubjectID uuid.UUID
	Period    string
	Group     int
	Professor string
	Advisor   string

	// Attempt defaults to 1.
	Attempt int
}

// EnrollmentResult contains the stored enrollment.
type EnrollmentResult struct {
	Enrollment *enrollment.Enrollment
}

// EnrollStudentHandler handles EnrollStudentCommand and RetakeCommand.
type EnrollStudentHandler struct {
	subjects    subject.Repository
	enrollments enrollment.Repository
	log         *zap.Logger
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(subjects subject.Repository, enrollments enrollment.Repository, log *zap.Logger) *EnrollStudentHandler {
	return &EnrollStudentHandler{
		subjects:    subjects,
		enrollments: enrollments,
		log:         log.With(logger.Component("enroll_student")),
	}
}

// Handle creates the enrollment. An unknown subject fails with shared.ErrNotFound.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*EnrollmentResult, error) {
	const op = "enroll_student"

	s, err := h.subjects.GetByID(ctx, cmd.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load subject: %w", op, err)
	}
	if s == nil {
		return nil, notFound(op, "subject", cmd.SubjectID)
	}

	e, err := enrollment.New(enrollment.NewEnrollmentParams{
		ID:        uuid.New(),
		SubjectID: s.ID(),
		Period:    cmd.Period,
		Group:     cmd.Group,
		Professor: cmd.Professor,
		Advisor:   cmd.Advisor,
		Attempt:   cmd.Attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.enrollments.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("%s: failed to save enrollment: %w", op, err)
	}

	h.log.Info("student enrolled",
		logger.EnrollmentID(e.ID()),
		logger.SubjectCode(s.Code().String()),
		logger.Period(e.Period().String()),
		zap.Int("attempt", e.Attempt()),
	)

	return &EnrollmentResult{Enrollment: e}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RETAKE COMMAND
// Opens the next attempt of a Failed or Dropped enrollment.
// ══════════════════════════════════════════════════════════════════════════════

// RetakeCommand names the closed enrollment and the period of the new attempt.
type RetakeCommand struct {
	EnrollmentID uuid.UUID
	Period       string
}

// Retake creates attempt+1 of a closed enrollment with the same subject and
// staff. It fails with shared.ErrValueOutOfRange after the last attempt.
func (h *EnrollStudentHandler) Retake(ctx context.Context, cmd RetakeCommand) (*EnrollmentResult, error) {
	const op = "retake_enrollment"

	period, err := shared.NewPeriod(cmd.Period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	previous, err := h.enrollments.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load enrollment: %w", op, err)
	}
	if previous == nil {
		return nil, notFound(op, "enrollment", cmd.EnrollmentID)
	}

	params, err := previous.NextAttempt(uuid.New(), period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e, err := enrollment.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.enrollments.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("%s: failed to save enrollment: %w", op, err)
	}

	h.log.Info("retake opened",
		logger.EnrollmentID(e.ID()),
		zap.Stringer("previous_enrollment_id", previous.ID()),
		logger.Period(e.Period().String()),
		zap.Int("attempt", e.Attempt()),
	)

	return &EnrollmentResult{Enrollment: e}, nil
}
