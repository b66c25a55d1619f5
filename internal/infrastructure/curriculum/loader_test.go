package curriculum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
)

const firstYear = `
subjects:
  - code: "15142101"
    module: 1
    semester: 2
    block: 1
    acronym: DPOO
    name: Programación orientada a objetos
    credits: 6.5
    prerequisites: ["15141101", "15141102"]
  - code: "15141102"
    module: 1
    semester: 1
    block: 2
    name: Álgebra lineal
    credits: 5
  - code: "15141101"
    module: 1
    semester: 1
    block: 1
    name: Fundamentos de programación
    credits: 6
`

func codes(c *Curriculum) []string {
	out := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.Code)
	}
	return out
}

func TestParse_OrdersPrerequisitesFirst(t *testing.T) {
	c, err := NewLoader().Parse(strings.NewReader(firstYear))
	require.NoError(t, err)
	assert.Equal(t, []string{"15141101", "15141102", "15142101"}, codes(c))

	subjects, err := c.Build(uuid.New)
	require.NoError(t, err)
	require.Len(t, subjects, 3)

	oop := subjects[2]
	assert.Equal(t, shared.SubjectCode("15142101"), oop.Code())
	assert.Equal(t, subject.Credits(6.5), oop.Credits())
	assert.True(t, oop.HasPrerequisite(subjects[0].ID()))
	assert.True(t, oop.HasPrerequisite(subjects[1].ID()))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		message string
	}{
		{
			name:    "empty document",
			doc:     "",
			message: "file is empty",
		},
		{
			name:    "no subjects",
			doc:     "subjects: []",
			message: "Subjects",
		},
		{
			name:    "unknown field",
			doc:     "subjects:\n  - code: \"15141101\"\n    hours: 4\n",
			message: "hours",
		},
		{
			name: "bad credits caught by the entity",
			doc: `
subjects:
  - code: "15141101"
    module: 1
    semester: 1
    block: 1
    name: Fundamentos de programación
    credits: 4
`,
			message: "credits",
		},
		{
			name: "code outside the plan",
			doc: `
subjects:
  - code: "99991101"
    module: 1
    semester: 1
    block: 1
    name: Fundamentos de programación
    credits: 6
`,
			message: "99991101",
		},
		{
			name: "module out of range",
			doc: `
subjects:
  - code: "15141101"
    module: 7
    semester: 1
    name: Fundamentos de programación
    credits: 6
`,
			message: "Module",
		},
		{
			name: "duplicate code",
			doc: `
subjects:
  - {code: "15141101", module: 1, semester: 1, name: Fundamentos, credits: 6}
  - {code: "15141101", module: 1, semester: 1, name: Fundamentos, credits: 6}
`,
			message: "listed twice",
		},
		{
			name: "unknown prerequisite",
			doc: `
subjects:
  - {code: "15141101", module: 1, semester: 1, name: Fundamentos, credits: 6, prerequisites: ["15141109"]}
`,
			message: "unknown subject 15141109",
		},
		{
			name: "repeated prerequisite",
			doc: `
subjects:
  - {code: "15141101", module: 1, semester: 1, name: Fundamentos, credits: 6}
  - {code: "15141102", module: 1, semester: 1, name: Álgebra, credits: 5, prerequisites: ["15141101", "15141101"]}
`,
			message: "unique",
		},
		{
			name: "cycle",
			doc: `
subjects:
  - {code: "15141101", module: 1, semester: 1, name: Fundamentos, credits: 6, prerequisites: ["15141102"]}
  - {code: "15141102", module: 1, semester: 1, name: Álgebra, credits: 5, prerequisites: ["15141101"]}
  - {code: "15141103", module: 1, semester: 1, name: Cálculo, credits: 5}
`,
			message: "cycle among 15141101, 15141102",
		},
		{
			name: "self prerequisite",
			doc: `
subjects:
  - {code: "15141101", module: 1, semester: 1, name: Fundamentos, credits: 6, prerequisites: ["15141101"]}
`,
			message: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCurriculum)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(firstYear), 0o600))

	c, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Entries, 3)

	_, err = NewLoader().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCurriculum)
}
