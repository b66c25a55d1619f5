// Package subject contains the curriculum item model. A Subject is immutable:
// "updating" one means constructing a new value with the same ID and saving it.
package subject

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
)

const domainName = "subject"

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Module is the academic module a subject belongs to.
type Module int

const (
	ModuleBasic                Module = 1
	ModuleDisciplinary         Module = 2
	ModuleDisciplinaryAdvanced Module = 3
	ModuleProfessional         Module = 4
)

// IsValid checks that the module is one of the known values.
func (m Module) IsValid() bool {
	return m >= ModuleBasic && m <= ModuleProfessional
}

// DisplayName returns the name shown in the curriculum.
func (m Module) DisplayName() string {
	switch m {
	case ModuleBasic:
		return "Formación Básica"
	case ModuleDisciplinary, ModuleDisciplinaryAdvanced:
		return "Formación Disciplinar"
	case ModuleProfessional:
		return "Formación Profesional"
	default:
		return "Desconocido"
	}
}

// String returns the identifier-style name of the module.
func (m Module) String() string {
	switch m {
	case ModuleBasic:
		return "basic"
	case ModuleDisciplinary:
		return "disciplinary"
	case ModuleDisciplinaryAdvanced:
		return "disciplinary_advanced"
	case ModuleProfessional:
		return "professional"
	default:
		return fmt.Sprintf("module(%d)", int(m))
	}
}

// Semester is a curriculum semester, 1 through 8.
type Semester int

const (
	MinSemester Semester = 1
	MaxSemester Semester = 8
)

// IsValid checks if the semester is within range.
func (s Semester) IsValid() bool {
	return s >= MinSemester && s <= MaxSemester
}

// Block is the block of the semester a subject is taught in.
type Block int

const (
	BlockZero   Block = 0
	BlockFirst  Block = 1
	BlockSecond Block = 2
)

// IsValid checks that the block is one of the known values.
func (b Block) IsValid() bool {
	return b >= BlockZero && b <= BlockSecond
}

// Credits is the credit value of a subject. Only the fixed values are allowed.
type Credits float64

const (
	CreditsFive       Credits = 5.0
	CreditsSix        Credits = 6.0
	CreditsSixAndHalf Credits = 6.5
)

// IsValid checks that the credits are one of the fixed values.
func (c Credits) IsValid() bool {
	switch c {
	case CreditsFive, CreditsSix, CreditsSixAndHalf:
		return true
	default:
		return false
	}
}

// Float64 returns the underlying value.
func (c Credits) Float64() float64 {
	return float64(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION RULES
// ══════════════════════════════════════════════════════════════════════════════

const (
	MinNameLength = 3
	MaxNameLength = 100
)

var acronymRegex = regexp.MustCompile(`^(D[A-Z]{3})?$`)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SUBJECT
// ══════════════════════════════════════════════════════════════════════════════

// Subject is a curriculum item. All fields are read through accessors.
type Subject struct {
	id            uuid.UUID
	module        Module
	semester      Semester
	block         Block
	code          shared.SubjectCode
	acronym       string
	name          string
	credits       Credits
	prerequisites []uuid.UUID // sorted, unique
}

// NewSubjectParams contains the fields of a subject.
type NewSubjectParams struct {
	ID            uuid.UUID
	Module        Module
	Semester      Semester
	Block         Block
	Code          string
	Acronym       string
	Name          string
	Credits       Credits
	Prerequisites []uuid.UUID
}

// New validates params and builds a Subject. It is also used to rehydrate
// subjects read from storage.
func New(params NewSubjectParams) (*Subject, error) {
	const op = "New"

	if err := shared.ValidateID(domainName, op, "id", params.ID); err != nil {
		return nil, err
	}
	if !params.Module.IsValid() {
		return nil, shared.FieldError(domainName, op, "module", shared.ErrValueOutOfRange, "must be between 1 and 4")
	}
	if !params.Semester.IsValid() {
		return nil, shared.FieldError(domainName, op, "semester", shared.ErrValueOutOfRange, "must be between 1 and 8")
	}
	if !params.Block.IsValid() {
		return nil, shared.FieldError(domainName, op, "block", shared.ErrValueOutOfRange, "must be 0, 1 or 2")
	}

	code, err := shared.NewSubjectCode(params.Code)
	if err != nil {
		return nil, shared.WrapError(domainName, op, shared.ErrInvalidFormat, "code", err)
	}

	acronym := strings.TrimSpace(params.Acronym)
	if !acronymRegex.MatchString(acronym) {
		return nil, shared.FieldError(domainName, op, "acronym", shared.ErrInvalidFormat, "must be empty or 4 uppercase letters starting with D")
	}

	name, err := shared.BoundedText(domainName, op, "name", params.Name, MinNameLength, MaxNameLength)
	if err != nil {
		return nil, err
	}

	if !params.Credits.IsValid() {
		return nil, shared.FieldError(domainName, op, "credits", shared.ErrValueOutOfRange, "must be 5.0, 6.0 or 6.5")
	}

	prerequisites, err := normalizePrerequisites(params.ID, params.Prerequisites)
	if err != nil {
		return nil, err
	}

	return &Subject{
		id:            params.ID,
		module:        params.Module,
		semester:      params.Semester,
		block:         params.Block,
		code:          code,
		acronym:       acronym,
		name:          name,
		credits:       params.Credits,
		prerequisites: prerequisites,
	}, nil
}

// normalizePrerequisites applies set semantics and rejects self references.
func normalizePrerequisites(self uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	const op = "New"

	set := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == self {
			return nil, shared.InvariantError(domainName, op, "a subject cannot be its own prerequisite")
		}
		if err := shared.ValidateID(domainName, op, "prerequisites", id); err != nil {
			return nil, err
		}
		set = append(set, id)
	}

	slices.SortFunc(set, compareIDs)
	return slices.Compact(set), nil
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Subject) ID() uuid.UUID            { return s.id }
func (s *Subject) Module() Module           { return s.module }
func (s *Subject) Semester() Semester       { return s.semester }
func (s *Subject) Block() Block             { return s.block }
func (s *Subject) Code() shared.SubjectCode { return s.code }
func (s *Subject) Acronym() string          { return s.acronym }
func (s *Subject) Name() string             { return s.name }
func (s *Subject) Credits() Credits         { return s.credits }

// Prerequisites returns a copy of the prerequisite IDs in a stable order.
func (s *Subject) Prerequisites() []uuid.UUID {
	return slices.Clone(s.prerequisites)
}

// HasPrerequisite reports whether id is a prerequisite of the subject.
func (s *Subject) HasPrerequisite(id uuid.UUID) bool {
	_, found := slices.BinarySearchFunc(s.prerequisites, id, compareIDs)
	return found
}

// Params returns the fields of the subject, ready to be changed and passed
// back to New.
func (s *Subject) Params() NewSubjectParams {
	return NewSubjectParams{
		ID:            s.id,
		Module:        s.module,
		Semester:      s.semester,
		Block:         s.block,
		Code:          s.code.String(),
		Acronym:       s.acronym,
		Name:          s.name,
		Credits:       s.credits,
		Prerequisites: s.Prerequisites(),
	}
}

// String returns a short representation for logging.
func (s *Subject) String() string {
	return fmt.Sprintf("Subject{ID: %s, Code: %s, Name: %s}", s.id, s.code, s.name)
}
