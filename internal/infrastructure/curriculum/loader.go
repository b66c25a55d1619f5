// Package curriculum reads a study plan from YAML. Entries are checked with
// struct tags, then with the subject constructors, and returned in an order
// where every prerequisite comes before the subjects that need it.
//
// File format:
//
//	subjects:
//	  - code: "15141101"
//	    module: 1
//	    semester: 1
//	    block: 1
//	    name: Fundamentos de programación
//	    credits: 6
//	  - code: "15142101"
//	    module: 1
//	    semester: 2
//	    block: 1
//	    acronym: DPRO
//	    name: Programación orientada a objetos
//	    credits: 6.5
//	    prerequisites: ["15141101"]
package curriculum

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/unadm-hub/academic-core/internal/domain/subject"
)

// ErrInvalidCurriculum is wrapped by every error the loader returns for a
// file that is readable but wrong.
var ErrInvalidCurriculum = errors.New("invalid curriculum")

// ══════════════════════════════════════════════════════════════════════════════
// FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// File is the top-level document.
type File struct {
	Subjects []Entry `yaml:"subjects" validate:"required,min=1,dive"`
}

// Entry is one subject of the plan. Prerequisites are referenced by code.
type Entry struct {
	Code          string   `yaml:"code" validate:"required,len=8,numeric"`
	Module        int      `yaml:"module" validate:"min=1,max=4"`
	Semester      int      `yaml:"semester" validate:"min=1,max=8"`
	Block         int      `yaml:"block" validate:"min=0,max=2"`
	Acronym       string   `yaml:"acronym" validate:"omitempty,len=4,uppercase"`
	Name          string   `yaml:"name" validate:"required"`
	Credits       float64  `yaml:"credits" validate:"required,gt=0"`
	Prerequisites []string `yaml:"prerequisites" validate:"unique,dive,len=8,numeric"`
}

// Params converts the entry into subject params. Prerequisite codes are
// resolved through ids.
func (e Entry) Params(id uuid.UUID, ids map[string]uuid.UUID) subject.NewSubjectParams {
	prerequisites := make([]uuid.UUID, 0, len(e.Prerequisites))
	for _, code := range e.Prerequisites {
		prerequisites = append(prerequisites, ids[code])
	}
	return subject.NewSubjectParams{
		ID:            id,
		Module:        subject.Module(e.Module),
		Semester:      subject.Semester(e.Semester),
		Block:         subject.Block(e.Block),
		Code:          e.Code,
		Acronym:       e.Acronym,
		Name:          e.Name,
		Credits:       subject.Credits(e.Credits),
		Prerequisites: prerequisites,
	}
}

// Curriculum is a validated plan.
type Curriculum struct {
	// Entries are ordered so prerequisites come first. Ties are broken by code.
	Entries []Entry
}

// Build creates the subjects of the plan with IDs from newID, in the order of
// Entries.
func (c *Curriculum) Build(newID func() uuid.UUID) ([]*subject.Subject, error) {
	ids := make(map[string]uuid.UUID, len(c.Entries))
	subjects := make([]*subject.Subject, 0, len(c.Entries))

	for _, e := range c.Entries {
		id := newID()
		s, err := subject.New(e.Params(id, ids))
		if err != nil {
			return nil, fmt.Errorf("%w: subject %s: %w", ErrInvalidCurriculum, e.Code, err)
		}
		ids[e.Code] = id
		subjects = append(subjects, s)
	}
	return subjects, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADER
// ══════════════════════════════════════════════════════════════════════════════

// Loader parses curriculum files.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// LoadFile reads and parses the file at path.
func (l *Loader) LoadFile(path string) (*Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curriculum: %w", err)
	}
	return l.Parse(bytes.NewReader(data))
}

// Parse decodes, validates and orders a curriculum.
func (l *Loader) Parse(r io.Reader) (*Curriculum, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", ErrInvalidCurriculum)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCurriculum, err)
	}

	if err := l.validate.Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCurriculum, describe(err))
	}

	entries, err := order(file.Subjects)
	if err != nil {
		return nil, err
	}

	c := &Curriculum{Entries: entries}
	if _, err := c.Build(uuid.New); err != nil {
		return nil, err
	}
	return c, nil
}

// describe flattens validator errors into "field: tag" pairs.
func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// order sorts entries topologically. It rejects duplicate codes, references
// to codes missing from the file, and prerequisite cycles.
func order(entries []Entry) ([]Entry, error) {
	byCode := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if _, dup := byCode[e.Code]; dup {
			return nil, fmt.Errorf("%w: subject %s is listed twice", ErrInvalidCurriculum, e.Code)
		}
		byCode[e.Code] = e
	}

	pending := make(map[string]int, len(entries))
	dependents := make(map[string][]string, len(entries))
	for _, e := range entries {
		for _, p := range e.Prerequisites {
			if _, ok := byCode[p]; !ok {
				return nil, fmt.Errorf("%w: subject %s requires unknown subject %s", ErrInvalidCurriculum, e.Code, p)
			}
			dependents[p] = append(dependents[p], e.Code)
		}
		pending[e.Code] = len(e.Prerequisites)
	}

	var ready []string
	for code, n := range pending {
		if n == 0 {
			ready = append(ready, code)
		}
	}

	ordered := make([]Entry, 0, len(entries))
	for len(ready) > 0 {
		sort.Strings(ready)
		code := ready[0]
		ready = ready[1:]

		ordered = append(ordered, byCode[code])
		for _, d := range dependents[code] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(ordered) != len(entries) {
		var stuck []string
		for code, n := range pending {
			if n > 0 {
				stuck = append(stuck, code)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: prerequisite cycle among %s", ErrInvalidCurriculum, strings.Join(stuck, ", "))
	}
	return ordered, nil
}
