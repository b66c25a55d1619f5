package calendar

import (
	"bytes"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unadm-hub/academic-core/internal/application/query"
)

func TestEncode(t *testing.T) {
	due := time.Date(2026, 3, 15, 23, 59, 0, 0, time.FixedZone("CST", -6*60*60))
	grade := 95
	cal := &query.TaskCalendarDTO{
		EnrollmentID: uuid.New(),
		SubjectCode:  "15141101",
		SubjectName:  "Fundamentos de programación",
		Period:       "2601",
		Tasks: []query.TaskEntryDTO{
			{ID: uuid.New(), Title: "Actividad 1", Instructions: "Entregar en PDF", DueDate: due, Status: "Todo"},
			{ID: uuid.New(), Title: "Foro de presentación", DueDate: due.Add(24 * time.Hour), Status: "Done", Value: &grade},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cal, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))

	parsed, err := ics.ParseCalendar(&buf)
	require.NoError(t, err)

	events := parsed.Events()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, UID(cal.Tasks[0].ID), first.Id())
	assert.Equal(t, "[15141101] Actividad 1", first.GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "Entregar en PDF", first.GetProperty(ics.ComponentPropertyDescription).Value)
	assert.Equal(t, "Todo", first.GetProperty(ics.ComponentPropertyCategories).Value)

	end, err := first.GetEndAt()
	require.NoError(t, err)
	assert.True(t, due.Equal(end), "end %s, want %s", end, due)

	second := events[1]
	assert.Equal(t, "[15141101] Foro de presentación (95)", second.GetProperty(ics.ComponentPropertySummary).Value)
	assert.Nil(t, second.GetProperty(ics.ComponentPropertyDescription))

	var name string
	for _, p := range parsed.CalendarProperties {
		if p.IANAToken == "X-WR-CALNAME" {
			name = p.Value
		}
	}
	assert.Equal(t, cal.Name(), name)
}

func TestEncode_NoTasks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &query.TaskCalendarDTO{SubjectCode: "15141101", Period: "2601"}, time.Now()))
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")
	assert.NotContains(t, buf.String(), "BEGIN:VEVENT")
}
