package usecase

import (
	"regexp"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/pkg/gcal"
)

var meetingLinkPattern = regexp.MustCompile(`(?i)(zoom\.us/|meet\.google\.com/|teams\.microsoft\.com/|teams\.live\.com/|webex\.com/|gotomeeting\.com/|whereby\.com/|chime\.aws/)`)

// IsMeeting applies the meeting rule: conferencing data, a meeting link in the location,
// or at least one attendee outside the organizer's email domain.
func IsMeeting(ev gcal.RemoteEvent) bool {
	if ev.HasConference {
		return true
	}
	if meetingLinkPattern.MatchString(ev.Location) {
		return true
	}
	return hasExternalAttendee(ev)
}

func hasExternalAttendee(ev gcal.RemoteEvent) bool {
	home := domain.EmailDomain(ev.Organizer.Email)
	if home == "" {
		for _, a := range ev.Attendees {
			if a.Self {
				home = domain.EmailDomain(a.Email)
				break
			}
		}
	}
	if home == "" {
		return false
	}

	for _, a := range ev.Attendees {
		if a.Resource {
			continue
		}
		if d := domain.EmailDomain(a.Email); d != "" && d != home {
			return true
		}
	}
	return false
}

// toLocal maps a provider event onto the mirror shape
func toLocal(userID string, ev gcal.RemoteEvent) *domain.CalendarEvent {
	attendees := make([]domain.Attendee, 0, len(ev.Attendees))
	for _, a := range ev.Attendees {
		if a.Resource {
			continue
		}
		attendees = append(attendees, domain.Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
			Organizer:      a.Organizer,
			Self:           a.Self,
		})
	}

	status := domain.EventStatus(ev.Status)
	if status == "" {
		status = domain.EventConfirmed
	}

	return &domain.CalendarEvent{
		UserID:          userID,
		CalendarID:      ev.CalendarID,
		ExternalEventID: ev.ID,
		Summary:         ev.Summary,
		Description:     ev.Description,
		Location:        ev.Location,
		StartTime:       ev.Start,
		EndTime:         ev.End,
		AllDay:          ev.AllDay,
		Attendees:       attendees,
		OrganizerEmail:  ev.Organizer.Email,
		ConferenceURL:   ev.ConferenceURL,
		HTMLLink:        ev.HTMLLink,
		Status:          status,
		IsMeeting:       IsMeeting(ev),
	}
}
