// Package calendar renders task calendars as iCalendar (RFC 5545) feeds that
// students can subscribe to from any calendar client.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/unadm-hub/academic-core/internal/application/query"
)

// ProductID identifies the feed producer.
const ProductID = "-//UnADM//academic-core//ES"

// uidDomain is appended to task IDs to form globally unique event UIDs.
const uidDomain = "academic-core.unadm"

// Each task becomes an event of this length ending at its due date.
const eventLength = time.Hour

// UID returns the event UID of a task.
func UID(taskID fmt.Stringer) string {
	return taskID.String() + "@" + uidDomain
}

// Encode writes cal as an iCalendar document. stamp is the DTSTAMP of every
// event. Times are written in UTC.
func Encode(w io.Writer, cal *query.TaskCalendarDTO, stamp time.Time) error {
	doc := ics.NewCalendar()
	doc.SetMethod(ics.MethodPublish)
	doc.SetProductId(ProductID)
	doc.SetXWRCalName(cal.Name())

	for _, t := range cal.Tasks {
		ev := doc.AddEvent(UID(t.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(t.DueDate.Add(-eventLength).UTC())
		ev.SetEndAt(t.DueDate.UTC())
		ev.SetSummary(summary(cal, t))
		if t.Instructions != "" {
			ev.SetDescription(t.Instructions)
		}
		ev.SetProperty(ics.ComponentPropertyCategories, t.Status)
	}

	if err := doc.SerializeTo(w); err != nil {
		return fmt.Errorf("calendar: failed to write feed: %w", err)
	}
	return nil
}

func summary(cal *query.TaskCalendarDTO, t query.TaskEntryDTO) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(cal.SubjectCode)
	b.WriteString("] ")
	b.WriteString(t.Title)
	if t.Value != nil {
		fmt.Fprintf(&b, " (%d)", *t.Value)
	}
	return b.String()
}
