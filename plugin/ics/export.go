// Package ics renders a user's projection as an iCalendar feed.
package ics

import (
	ical "github.com/arran4/golang-ical"

	"github.com/voicecal/voicecal/store"
)

const prodID = "-//voicecal//calendar//EN"

// Export serializes the events into an iCalendar document. Location,
// attendees and recurrence are read from the event's data bag when
// present.
func Export(events []*store.Event, calendarName string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	if calendarName != "" {
		cal.SetXWRCalName(calendarName)
	}

	for _, event := range events {
		ve := cal.AddEvent(event.ID)
		ve.SetDtStampTime(event.CreatedAt)
		ve.SetCreatedTime(event.CreatedAt)
		ve.SetStartAt(event.Start)
		ve.SetEndAt(event.End)
		ve.SetSummary(event.Title)

		if location, ok := event.Data["location"].(string); ok && location != "" {
			ve.SetLocation(location)
		}
		if recurrence, ok := event.Data["recurrence"].(string); ok && recurrence != "" {
			ve.AddRrule(recurrence)
		}
		for _, attendee := range attendees(event.Data["attendees"]) {
			ve.AddAttendee(attendee)
		}
	}
	return cal.Serialize()
}

// attendees tolerates both []string (fresh events) and []any (events
// round-tripped through JSON).
func attendees(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
