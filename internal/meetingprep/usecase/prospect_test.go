package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caldomain "taskflow-backend/internal/calendar/domain"
)

func TestFindProspectPicksFirstExternalAttendee(t *testing.T) {
	ev := &caldomain.CalendarEvent{
		OrganizerEmail: "organizer@acme.com",
		Attendees: []caldomain.Attendee{
			{Email: "organizer@acme.com", Organizer: true},
			{Email: "jane@other.io"},
		},
	}

	p := FindProspect(ev)
	require.NotNil(t, p)
	assert.Equal(t, "jane@other.io", p.Email)
	assert.Equal(t, "Other", p.Company)
	assert.Equal(t, "Jane", p.Name)
}

func TestFindProspectSkipsGenericAndInternal(t *testing.T) {
	ev := &caldomain.CalendarEvent{
		OrganizerEmail: "me@acme.com",
		Attendees: []caldomain.Attendee{
			{Email: "bob@acme.com"},
			{Email: "noreply@vendor.com"},
			{Email: "support@vendor.com"},
			{Email: "sam.lee@big-vendor.co.uk", DisplayName: "Sam Lee"},
		},
	}

	p := FindProspect(ev)
	require.NotNil(t, p)
	assert.Equal(t, "sam.lee@big-vendor.co.uk", p.Email)
	assert.Equal(t, "Sam Lee", p.Name)
	assert.Equal(t, "Big Vendor", p.Company)
}

func TestFindProspectNone(t *testing.T) {
	ev := &caldomain.CalendarEvent{
		OrganizerEmail: "me@acme.com",
		Attendees:      []caldomain.Attendee{{Email: "bob@acme.com"}, {Email: "no-reply@zoom.us"}},
	}
	assert.Nil(t, FindProspect(ev))
}

func TestCompanyFromDomain(t *testing.T) {
	tests := map[string]string{
		"other.io":         "Other",
		"acme-corp.com":    "Acme Corp",
		"mail.globex.com":  "Globex",
		"data_works.co.uk": "Data Works",
		"initech.com.au":   "Initech",
		"localhost":        "Localhost",
	}
	for in, want := range tests {
		assert.Equal(t, want, CompanyFromDomain(in), in)
	}
}
