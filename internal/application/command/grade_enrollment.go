package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE / DROP ENROLLMENT COMMANDS
// Close an Active enrollment. Grading picks Completed or Failed from the
// final result against enrollment.MinPassingGrade.
// ══════════════════════════════════════════════════════════════════════════════

// GradeEnrollmentCommand records the final result of an enrollment.
type GradeEnrollmentCommand struct {
	EnrollmentID uuid.UUID
	Result       int
}

// DropEnrollmentCommand withdraws from an enrollment.
type DropEnrollmentCommand struct {
	EnrollmentID uuid.UUID
}

// CloseEnrollmentHandler handles GradeEnrollmentCommand and DropEnrollmentCommand.
type CloseEnrollmentHandler struct {
	enrollments enrollment.Repository
	log         *zap.Logger
}

// NewCloseEnrollmentHandler creates a new CloseEnrollmentHandler.
func NewCloseEnrollmentHandler(enrollments enrollment.Repository, log *zap.Logger) *CloseEnrollmentHandler {
	return &CloseEnrollmentHandler{
		enrollments: enrollments,
		log:         log.With(logger.Component("close_enrollment")),
	}
}

// Grade closes the enrollment with its final result.
func (h *CloseEnrollmentHandler) Grade(ctx context.Context, cmd GradeEnrollmentCommand) (*EnrollmentResult, error) {
	const op = "grade_enrollment"

	outcome, err := enrollment.OutcomeForResult(cmd.Result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return h.close(ctx, op, cmd.EnrollmentID, outcome)
}

// Drop closes the enrollment without a result.
func (h *CloseEnrollmentHandler) Drop(ctx context.Context, cmd DropEnrollmentCommand) (*EnrollmentResult, error) {
	return h.close(ctx, "drop_enrollment", cmd.EnrollmentID, enrollment.Dropped{})
}

func (h *CloseEnrollmentHandler) close(ctx context.Context, op string, id uuid.UUID, outcome enrollment.Outcome) (*EnrollmentResult, error) {
	current, err := h.enrollments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load enrollment: %w", op, err)
	}
	if current == nil {
		return nil, notFound(op, "enrollment", id)
	}

	next, err := current.TransitionTo(outcome)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.enrollments.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%s: failed to save enrollment: %w", op, err)
	}

	fields := []zap.Field{logger.EnrollmentID(next.ID()), logger.Status(next.Status())}
	if result, ok := next.Result(); ok {
		fields = append(fields, zap.Int("result", result.Int()))
	}
	h.log.Info("enrollment closed", fields...)

	return &EnrollmentResult{Enrollment: next}, nil
}
