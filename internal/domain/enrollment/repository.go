package enrollment

import (
	"context"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

// Repository is the persistence port for enrollments.
// Implementations rebuild enrollments through OutcomeFor and New, so a stored
// row that breaks the status/result rules is reported as an error, not returned.
type Repository interface {
	// Save persists a new enrollment or replaces the stored one with the same ID.
	Save(ctx context.Context, e *Enrollment) error

	// GetByID returns the enrollment with the given ID.
	// Returns nil, nil when no enrollment matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)

	// GetByPeriod returns the enrollments of a period. Empty, not nil, when none match.
	GetByPeriod(ctx context.Context, period shared.Period) ([]*Enrollment, error)

	// GetByStatus returns the enrollments with a status. Empty, not nil, when none match.
	GetByStatus(ctx context.Context, status Status) ([]*Enrollment, error)
}
