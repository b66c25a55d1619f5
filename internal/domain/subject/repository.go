package subject

import (
	"context"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence. They copy subjects in
// and out of their storage form and must rebuild them through New.
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the persistence port for subjects.
type Repository interface {
	// Save persists a new subject or replaces the stored one with the same ID.
	Save(ctx context.Context, s *Subject) error

	// GetByID returns the subject with the given ID.
	// Returns nil, nil when no subject matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Subject, error)

	// GetByCode returns the subject with the given official code (e.g. "15141101").
	// Returns nil, nil when no subject matches.
	GetByCode(ctx context.Context, code shared.SubjectCode) (*Subject, error)

	// ListAll returns every subject ordered by code. Never returns nil on success.
	ListAll(ctx context.Context) ([]*Subject, error)
}
