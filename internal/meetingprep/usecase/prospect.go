package usecase

import (
	"regexp"
	"strings"
	"unicode"

	caldomain "taskflow-backend/internal/calendar/domain"
)

// genericMailbox matches shared inboxes that never identify a person
var genericMailbox = regexp.MustCompile(`^(no-?reply|do-?not-?reply|support|info|admin|sales|hello|contact|team|billing|help|notifications?|calendar|events?|mailer-daemon|postmaster)([+.].*)?@`)

// secondLevelLabels are registry labels that sit between the company name and the country TLD
var secondLevelLabels = map[string]bool{
	"co": true, "com": true, "org": true, "net": true, "ac": true, "gov": true, "edu": true, "ltd": true,
}

// Prospect is the external person a meeting is held with
type Prospect struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// FindProspect returns the first attendee from outside the organizer's domain that is not a
// generic mailbox, or nil.
func FindProspect(ev *caldomain.CalendarEvent) *Prospect {
	home := ev.OrganizerDomain()
	if home == "" {
		for _, a := range ev.Attendees {
			if a.Self {
				home = caldomain.EmailDomain(a.Email)
				break
			}
		}
	}

	for _, a := range ev.Attendees {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		d := caldomain.EmailDomain(email)
		if d == "" || d == home || a.Self || genericMailbox.MatchString(email) {
			continue
		}
		name := strings.TrimSpace(a.DisplayName)
		if name == "" {
			name = nameFromEmail(email)
		}
		return &Prospect{Name: name, Email: email, Company: CompanyFromDomain(d)}
	}
	return nil
}

// CompanyFromDomain turns "acme-corp.co.uk" into "Acme Corp"
func CompanyFromDomain(domain string) string {
	labels := strings.Split(strings.ToLower(domain), ".")
	if len(labels) > 1 {
		labels = labels[:len(labels)-1]
	}
	if len(labels) > 1 && secondLevelLabels[labels[len(labels)-1]] {
		labels = labels[:len(labels)-1]
	}
	return titleWords(labels[len(labels)-1])
}

func nameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	return titleWords(local)
}

func titleWords(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
