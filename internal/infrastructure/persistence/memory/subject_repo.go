// Package memory implements the repository ports in process memory. It backs
// tests and the dry-run mode of the migrate command.
//
// Entities are immutable, so the stores hold the pointers they are given and
// hand them back without copying. Slices returned to callers are always fresh.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SubjectRepository implements subject.Repository.
type SubjectRepository struct {
	mu sync.RWMutex

	// byID holds every subject indexed by ID.
	byID map[uuid.UUID]*subject.Subject

	// byCode indexes subjects by official code. Codes are unique.
	byCode map[shared.SubjectCode]uuid.UUID
}

var _ subject.Repository = (*SubjectRepository)(nil)

// NewSubjectRepository creates an empty SubjectRepository.
func NewSubjectRepository() *SubjectRepository {
	return &SubjectRepository{
		byID:   make(map[uuid.UUID]*subject.Subject),
		byCode: make(map[shared.SubjectCode]uuid.UUID),
	}
}

// Save inserts or replaces s. A code already held by another subject is
// rejected with shared.ErrAlreadyExists.
func (r *SubjectRepository) Save(ctx context.Context, s *subject.Subject) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byCode[s.Code()]; ok && owner != s.ID() {
		return fmt.Errorf("subject code %s is already registered: %w", s.Code(), shared.ErrAlreadyExists)
	}
	if previous, ok := r.byID[s.ID()]; ok {
		delete(r.byCode, previous.Code())
	}

	r.byID[s.ID()] = s
	r.byCode[s.Code()] = s.ID()
	return nil
}

// GetByID implements subject.Repository.
func (r *SubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id], nil
}

// GetByCode implements subject.Repository.
func (r *SubjectRepository) GetByCode(ctx context.Context, code shared.SubjectCode) (*subject.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	return r.byID[id], nil
}

// ListAll returns every subject ordered by code.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*subject.Subject, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out, nil
}
