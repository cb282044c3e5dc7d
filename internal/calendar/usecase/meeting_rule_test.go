package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskflow-backend/pkg/gcal"
)

func TestIsMeeting(t *testing.T) {
	org := gcal.Attendee{Email: "me@acme.com", Organizer: true}

	tests := []struct {
		name string
		ev   gcal.RemoteEvent
		want bool
	}{
		{
			name: "conference data",
			ev:   gcal.RemoteEvent{Organizer: org, HasConference: true},
			want: true,
		},
		{
			name: "zoom link in location",
			ev:   gcal.RemoteEvent{Organizer: org, Location: "https://acme.zoom.us/j/123"},
			want: true,
		},
		{
			name: "external attendee",
			ev: gcal.RemoteEvent{Organizer: org, Attendees: []gcal.Attendee{
				{Email: "me@acme.com"}, {Email: "jane@other.io"},
			}},
			want: true,
		},
		{
			name: "internal attendees only",
			ev: gcal.RemoteEvent{Organizer: org, Attendees: []gcal.Attendee{
				{Email: "me@acme.com"}, {Email: "bob@ACME.com"},
			}},
		},
		{
			name: "external room resource is not an attendee",
			ev: gcal.RemoteEvent{Organizer: org, Attendees: []gcal.Attendee{
				{Email: "room-1@resource.calendar.google.com", Resource: true},
			}},
		},
		{
			name: "solo focus block",
			ev:   gcal.RemoteEvent{Organizer: org, Location: "Desk"},
		},
		{
			name: "organizer unknown falls back to self",
			ev: gcal.RemoteEvent{Attendees: []gcal.Attendee{
				{Email: "me@acme.com", Self: true}, {Email: "jane@other.io"},
			}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMeeting(tt.ev))
		})
	}
}
