// Package command contains write operations. Each handler loads what it needs
// through the repository ports, asks the domain for the next value and saves
// it back.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

// notFound reports a missing record in the shared.ErrNotFound family.
func notFound(op, what string, key any) error {
	return fmt.Errorf("%s: %s %v: %w", op, what, key, shared.ErrNotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER SUBJECT COMMAND
// Adds a subject to the catalogue. Prerequisites are given by code and must
// already be registered.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterSubjectCommand contains the data of a new subject.
type RegisterSubjectCommand struct {
	// ID is optional. A nil ID gets a fresh one.
	ID uuid.UUID

	Module   int
	Semester int
	Block    int
	Code     string
	Acronym  string
	Name     string
	Credits  float64

	// PrerequisiteCodes are official codes of registered subjects.
	PrerequisiteCodes []string
}

// RegisterSubjectResult contains the stored subject.
type RegisterSubjectResult struct {
	Subject *subject.Subject
}

// RegisterSubjectHandler handles RegisterSubjectCommand.
type RegisterSubjectHandler struct {
	subjects subject.Repository
	log      *zap.Logger
}

// NewRegisterSubjectHandler creates a new RegisterSubjectHandler.
func NewRegisterSubjectHandler(subjects subject.Repository, log *zap.Logger) *RegisterSubjectHandler {
	return &RegisterSubjectHandler{
		subjects: subjects,
		log:      log.With(logger.Component("register_subject")),
	}
}

// Handle registers the subject. A code that is already taken fails with
// shared.ErrAlreadyExists and an unknown prerequisite with shared.ErrNotFound.
func (h *RegisterSubjectHandler) Handle(ctx context.Context, cmd RegisterSubjectCommand) (*RegisterSubjectResult, error) {
	const op = "register_subject"

	code, err := shared.NewSubjectCode(cmd.Code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := h.subjects.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to look up code: %w", op, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: subject code %s: %w", op, code, shared.ErrAlreadyExists)
	}

	prerequisites, err := h.resolvePrerequisites(ctx, op, cmd.PrerequisiteCodes)
	if err != nil {
		return nil, err
	}

	id := cmd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	s, err := subject.New(subject.NewSubjectParams{
		ID:            id,
		Module:        subject.Module(cmd.Module),
		Semester:      subject.Semester(cmd.Semester),
		Block:         subject.Block(cmd.Block),
		Code:          code.String(),
		Acronym:       cmd.Acronym,
		Name:          cmd.Name,
		Credits:       subject.Credits(cmd.Credits),
		Prerequisites: prerequisites,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.subjects.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("%s: failed to save subject: %w", op, err)
	}

	h.log.Info("subject registered",
		logger.SubjectID(s.ID()),
		logger.SubjectCode(s.Code().String()),
		zap.Int("prerequisites", len(prerequisites)),
	)

	return &RegisterSubjectResult{Subject: s}, nil
}

func (h *RegisterSubjectHandler) resolvePrerequisites(ctx context.Context, op string, codes []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(codes))
	for _, raw := range codes {
		code, err := shared.NewSubjectCode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: prerequisite: %w", op, err)
		}
		p, err := h.subjects.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to look up prerequisite %s: %w", op, code, err)
		}
		if p == nil {
			return nil, notFound(op, "prerequisite", code)
		}
		ids = append(ids, p.ID())
	}
	return ids, nil
}

// IsAlreadyRegistered reports whether err came from registering a code that
// is already in the catalogue.
func IsAlreadyRegistered(err error) bool {
	return errors.Is(err, shared.ErrAlreadyExists)
}
