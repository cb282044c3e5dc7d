package usecase

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"taskflow-backend/internal/calendar/domain"

	"github.com/emersion/go-ical"
)

const icsProductID = "-//taskflow//calendar mirror//EN"

// EncodeICS renders mirrored events as an iCalendar document
func EncodeICS(events []*domain.CalendarEvent) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	stamp := time.Now().UTC()
	for _, ev := range events {
		cal.Children = append(cal.Children, icsEvent(ev, stamp).Component)
	}
	// The encoder rejects a calendar with no components
	if len(cal.Children) == 0 {
		cal.Children = append(cal.Children, utcTimezone())
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode ics: %w", err)
	}
	return buf.Bytes(), nil
}

func utcTimezone() *ical.Component {
	std := ical.NewComponent(ical.CompTimezoneStandard)
	start := ical.NewProp(ical.PropDateTimeStart)
	start.Value = "19700101T000000"
	std.Props.Set(start)
	std.Props.SetText(ical.PropTimezoneOffsetFrom, "+0000")
	std.Props.SetText(ical.PropTimezoneOffsetTo, "+0000")

	tz := ical.NewComponent(ical.CompTimezone)
	tz.Props.SetText(ical.PropTimezoneID, "UTC")
	tz.Children = append(tz.Children, std)
	return tz
}

func icsEvent(ev *domain.CalendarEvent, stamp time.Time) *ical.Event {
	out := ical.NewEvent()
	out.Props.SetText(ical.PropUID, ev.ExternalEventID+"@"+ev.CalendarID)
	out.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	if ev.AllDay {
		out.Props.SetDate(ical.PropDateTimeStart, ev.StartTime)
		out.Props.SetDate(ical.PropDateTimeEnd, ev.EndTime)
	} else {
		out.Props.SetDateTime(ical.PropDateTimeStart, ev.StartTime.UTC())
		out.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndTime.UTC())
	}

	if ev.Summary != "" {
		out.Props.SetText(ical.PropSummary, ev.Summary)
	}
	if ev.Description != "" {
		out.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		out.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.ConferenceURL != "" {
		out.Props.SetText(ical.PropURL, ev.ConferenceURL)
	}
	out.Props.SetText(ical.PropStatus, strings.ToUpper(string(ev.Status)))

	if ev.OrganizerEmail != "" {
		out.Props.SetText(ical.PropOrganizer, "mailto:"+ev.OrganizerEmail)
	}
	for _, a := range ev.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + a.Email
		if a.DisplayName != "" {
			prop.Params.Set(ical.ParamCommonName, a.DisplayName)
		}
		out.Props.Add(prop)
	}
	return out
}
