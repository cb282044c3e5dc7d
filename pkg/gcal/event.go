package gcal

import (
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

// RemoteEvent is a provider event reduced to the fields the mirror keeps.
type RemoteEvent struct {
	ID            string
	CalendarID    string
	Summary       string
	Description   string
	Location      string
	Status        string
	Start         time.Time
	End           time.Time
	AllDay        bool
	Organizer     Attendee
	Attendees     []Attendee
	HangoutLink   string
	ConferenceURL string
	HasConference bool
	HTMLLink      string
}

type Attendee struct {
	Email          string
	DisplayName    string
	ResponseStatus string
	Organizer      bool
	Self           bool
	Resource       bool
}

// Cancelled reports whether the provider deleted or cancelled the event.
func (e RemoteEvent) Cancelled() bool {
	return e.Status == "cancelled"
}

func convertEvent(calendarID string, ev *calendar.Event) RemoteEvent {
	out := RemoteEvent{
		ID:          ev.Id,
		CalendarID:  calendarID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		HangoutLink: ev.HangoutLink,
		HTMLLink:    ev.HtmlLink,
	}

	out.Start, out.AllDay = parseEventTime(ev.Start)
	out.End, _ = parseEventTime(ev.End)

	if ev.Organizer != nil {
		out.Organizer = Attendee{
			Email:       strings.ToLower(ev.Organizer.Email),
			DisplayName: ev.Organizer.DisplayName,
			Organizer:   true,
			Self:        ev.Organizer.Self,
		}
	}

	for _, a := range ev.Attendees {
		if a == nil || a.Email == "" {
			continue
		}
		out.Attendees = append(out.Attendees, Attendee{
			Email:          strings.ToLower(a.Email),
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
			Organizer:      a.Organizer,
			Self:           a.Self,
			Resource:       a.Resource,
		})
	}

	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
				out.ConferenceURL = ep.Uri
				break
			}
		}
		out.HasConference = out.ConferenceURL != "" || ev.ConferenceData.ConferenceId != ""
	}
	if ev.HangoutLink != "" {
		out.HasConference = true
		if out.ConferenceURL == "" {
			out.ConferenceURL = ev.HangoutLink
		}
	}

	return out
}

func parseEventTime(t *calendar.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed, false
		}
	}
	if t.Date != "" {
		loc := time.UTC
		if t.TimeZone != "" {
			if l, err := time.LoadLocation(t.TimeZone); err == nil {
				loc = l
			}
		}
		if parsed, err := time.ParseInLocation("2006-01-02", t.Date, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
