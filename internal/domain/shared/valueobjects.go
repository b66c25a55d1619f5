package shared

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// ValidateID checks that id is a non-nil version 4 UUID.
func ValidateID(domain, op, field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return FieldError(domain, op, field, ErrInvalidID, "must not be empty")
	}
	if id.Version() != 4 {
		return FieldError(domain, op, field, ErrInvalidID, "must be a version 4 UUID")
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// SubjectCode Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ErrInvalidSubjectCode is the sentinel matched by every InvalidSubjectCodeError.
var ErrInvalidSubjectCode = errors.New("invalid subject code")

// InvalidSubjectCodeError reports a raw string that is not a subject code.
type InvalidSubjectCodeError struct {
	Raw    string
	Reason string
}

func (e *InvalidSubjectCodeError) Error() string {
	return fmt.Sprintf("invalid subject code %q: %s", e.Raw, e.Reason)
}

// Is makes the error match ErrInvalidSubjectCode and ErrValidation.
func (e *InvalidSubjectCodeError) Is(target error) bool {
	return target == ErrInvalidSubjectCode || target == ErrValidation || target == ErrInvalidFormat
}

// SubjectCodePrefix is the fixed program prefix of every subject code.
const SubjectCodePrefix = "1514"

// Subject code layout: prefix, module (1-4), semester (1-8), sequence (01-46).
var subjectCodeRegex = regexp.MustCompile(`^1514[1-4][1-8](0[1-9]|[1-3][0-9]|4[0-6])$`)

// SubjectCode is the canonical 8-digit curriculum identifier (e.g. "15141101").
// It is compared and hashed by value, so it can be used directly as a map key.
type SubjectCode string

// NewSubjectCode validates raw and returns the canonical code.
func NewSubjectCode(raw string) (SubjectCode, error) {
	if err := ValidateSubjectCode(raw); err != nil {
		return "", err
	}
	return SubjectCode(raw), nil
}

// NewSubjectCodeWithSemester validates raw together with a semester hint.
// The hint must agree with the semester digit of the code; it is not stored.
func NewSubjectCodeWithSemester(raw string, semester int) (SubjectCode, error) {
	code, err := NewSubjectCode(raw)
	if err != nil {
		return "", err
	}
	if semester < 1 || semester > 8 {
		return "", &InvalidSubjectCodeError{Raw: raw, Reason: "semester hint must be between 1 and 8"}
	}
	if code.Semester() != semester {
		return "", &InvalidSubjectCodeError{Raw: raw, Reason: fmt.Sprintf("semester hint %d does not match code", semester)}
	}
	return code, nil
}

// ValidateSubjectCode checks raw against the subject code rules.
func ValidateSubjectCode(raw string) error {
	switch {
	case raw == "":
		return &InvalidSubjectCodeError{Raw: raw, Reason: "code is empty"}
	case len(raw) != 8:
		return &InvalidSubjectCodeError{Raw: raw, Reason: "code must have exactly 8 digits"}
	case !strings.HasPrefix(raw, SubjectCodePrefix):
		return &InvalidSubjectCodeError{Raw: raw, Reason: "code must start with " + SubjectCodePrefix}
	case !subjectCodeRegex.MatchString(raw):
		return &InvalidSubjectCodeError{Raw: raw, Reason: "module, semester or sequence digits out of range"}
	}
	return nil
}

// IsValid checks if the code matches the subject code pattern.
func (c SubjectCode) IsValid() bool {
	return subjectCodeRegex.MatchString(string(c))
}

// String returns the canonical code.
func (c SubjectCode) String() string {
	return string(c)
}

// Module returns the module digit encoded in the code.
func (c SubjectCode) Module() int {
	if !c.IsValid() {
		return 0
	}
	return int(c[4] - '0')
}

// Semester returns the semester digit encoded in the code.
func (c SubjectCode) Semester() int {
	if !c.IsValid() {
		return 0
	}
	return int(c[5] - '0')
}

// Sequence returns the two-digit sequence number.
func (c SubjectCode) Sequence() int {
	if !c.IsValid() {
		return 0
	}
	return int(c[6]-'0')*10 + int(c[7]-'0')
}

// ═══════════════════════════════════════════════════════════════════════════
// Period Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Period is an academic term token "YYHH": a year between 26 and 34 and
// a half, 01 or 02 (e.g. "2601").
type Period string

var periodRegex = regexp.MustCompile(`^(2[6-9]|3[0-4])0[12]$`)

// IsValid checks if the period format is valid.
func (p Period) IsValid() bool {
	return periodRegex.MatchString(string(p))
}

// String returns the string representation.
func (p Period) String() string {
	return string(p)
}

// Year returns the two-digit year.
func (p Period) Year() int {
	if !p.IsValid() {
		return 0
	}
	return int(p[0]-'0')*10 + int(p[1]-'0')
}

// Half returns 1 or 2.
func (p Period) Half() int {
	if !p.IsValid() {
		return 0
	}
	return int(p[3] - '0')
}

// NewPeriod creates a new Period with validation.
func NewPeriod(value string) (Period, error) {
	p := Period(strings.TrimSpace(value))
	if !p.IsValid() {
		return "", FieldError("shared", "NewPeriod", "period", ErrInvalidFormat, "expected YY01 or YY02 with YY between 26 and 34")
	}
	return p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Grade is a score between MinGrade and MaxGrade inclusive.
type Grade int

const (
	MinGrade Grade = 0
	MaxGrade Grade = 100
)

// IsValid checks if the grade is within range.
func (g Grade) IsValid() bool {
	return g >= MinGrade && g <= MaxGrade
}

// Int returns the underlying int value.
func (g Grade) Int() int {
	return int(g)
}

// NewGrade creates a new Grade with validation.
func NewGrade(value int) (Grade, error) {
	g := Grade(value)
	if !g.IsValid() {
		return 0, FieldError("shared", "NewGrade", "grade", ErrValueOutOfRange, "must be between 0 and 100")
	}
	return g, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Bounded text
// ═══════════════════════════════════════════════════════════════════════════

// BoundedText trims value and checks its length in code points.
func BoundedText(domain, op, field, value string, min, max int) (string, error) {
	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 && min > 0 {
		return "", FieldError(domain, op, field, ErrEmptyValue, "is required")
	}
	if n < min || n > max {
		return "", FieldError(domain, op, field, ErrValueOutOfRange,
			fmt.Sprintf("must be between %d and %d characters, got %d", min, max, n))
	}
	return trimmed, nil
}
