package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/enrollment"
	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentEntry struct {
	enrollment *enrollment.Enrollment
	seq        uint64 // insertion order, kept across replacements
}

// EnrollmentRepository implements enrollment.Repository.
// Lists come back in insertion order, grouped by period for GetByStatus,
// matching the PostgreSQL adapter.
type EnrollmentRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*enrollmentEntry
	nextSeq uint64
}

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

// NewEnrollmentRepository creates an empty EnrollmentRepository.
func NewEnrollmentRepository() *EnrollmentRepository {
	return &EnrollmentRepository{entries: make(map[uuid.UUID]*enrollmentEntry)}
}

// Save implements enrollment.Repository.
func (r *EnrollmentRepository) Save(ctx context.Context, e *enrollment.Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[e.ID()]; ok {
		existing.enrollment = e
		return nil
	}
	r.nextSeq++
	r.entries[e.ID()] = &enrollmentEntry{enrollment: e, seq: r.nextSeq}
	return nil
}

// GetByID implements enrollment.Repository.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*enrollment.Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.entries[id]; ok {
		return entry.enrollment, nil
	}
	return nil, nil
}

// GetByPeriod implements enrollment.Repository.
func (r *EnrollmentRepository) GetByPeriod(ctx context.Context, period shared.Period) ([]*enrollment.Enrollment, error) {
	return r.filter(ctx, func(e *enrollment.Enrollment) bool { return e.Period() == period })
}

// GetByStatus implements enrollment.Repository.
func (r *EnrollmentRepository) GetByStatus(ctx context.Context, status enrollment.Status) ([]*enrollment.Enrollment, error) {
	return r.filter(ctx, func(e *enrollment.Enrollment) bool { return e.Status() == status })
}

func (r *EnrollmentRepository) filter(ctx context.Context, keep func(*enrollment.Enrollment) bool) ([]*enrollment.Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*enrollmentEntry, 0)
	for _, entry := range r.entries {
		if keep(entry.enrollment) {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		pi, pj := matched[i].enrollment.Period(), matched[j].enrollment.Period()
		if pi != pj {
			return pi < pj
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]*enrollment.Enrollment, 0, len(matched))
	for _, entry := range matched {
		out = append(out, entry.enrollment)
	}
	return out, nil
}
