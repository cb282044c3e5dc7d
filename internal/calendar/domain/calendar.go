package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ProviderGoogle is the only calendar provider supported today
const ProviderGoogle = "google"

// PrimaryCalendarID is the calendar mirrored for every owner
const PrimaryCalendarID = "primary"

// EventStatus mirrors the provider event status
type EventStatus string

const (
	EventConfirmed EventStatus = "confirmed"
	EventTentative EventStatus = "tentative"
	EventCancelled EventStatus = "cancelled"
)

// Attendee is one invitee of a mirrored event
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	ResponseStatus string `json:"response_status,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
	Self           bool   `json:"self,omitempty"`
}

// CalendarEvent is the local mirror of a provider event
type CalendarEvent struct {
	ID              string                        `json:"id" gorm:"primaryKey"`
	UserID          string                        `json:"user_id" gorm:"not null;uniqueIndex:idx_calendar_event_key,priority:1"`
	CalendarID      string                        `json:"calendar_id" gorm:"not null;uniqueIndex:idx_calendar_event_key,priority:2"`
	ExternalEventID string                        `json:"external_event_id" gorm:"not null;uniqueIndex:idx_calendar_event_key,priority:3"`
	Summary         string                        `json:"summary"`
	Description     string                        `json:"description,omitempty"`
	Location        string                        `json:"location,omitempty"`
	StartTime       time.Time                     `json:"start_time" gorm:"index"`
	EndTime         time.Time                     `json:"end_time"`
	AllDay          bool                          `json:"all_day"`
	Attendees       datatypes.JSONSlice[Attendee] `json:"attendees"`
	OrganizerEmail  string                        `json:"organizer_email,omitempty"`
	ConferenceURL   string                        `json:"conference_url,omitempty"`
	HTMLLink        string                        `json:"html_link,omitempty"`
	Status          EventStatus                   `json:"status" gorm:"default:confirmed"`
	IsMeeting       bool                          `json:"is_meeting" gorm:"index"`
	PrepTaskCreated bool                          `json:"prep_task_created" gorm:"default:false"`
	PrepTaskID      *string                       `json:"prep_task_id,omitempty" gorm:"index"`
	CreatedAt       time.Time                     `json:"created_at"`
	UpdatedAt       time.Time                     `json:"updated_at"`
}

func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// OrganizerDomain returns the domain part of the organizer's email
func (e *CalendarEvent) OrganizerDomain() string {
	return EmailDomain(e.OrganizerEmail)
}

// EmailDomain returns the lowercased part after the last @, or ""
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// OAuthCredential holds the provider tokens of one owner
type OAuthCredential struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"not null;uniqueIndex:idx_credential_owner_provider,priority:1"`
	Provider     string    `json:"provider" gorm:"not null;uniqueIndex:idx_credential_owner_provider,priority:2"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `json:"scope"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (OAuthCredential) TableName() string {
	return "oauth_credentials"
}

// ValidAt reports whether the access token can still be used at t with the given margin
func (c *OAuthCredential) ValidAt(t time.Time, margin time.Duration) bool {
	return c.AccessToken != "" && c.Expiry.After(t.Add(margin))
}

// WebhookSubscription is a registered push channel for one owner calendar
type WebhookSubscription struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"not null;uniqueIndex:idx_subscription_owner_calendar,priority:1"`
	CalendarID string    `json:"calendar_id" gorm:"not null;uniqueIndex:idx_subscription_owner_calendar,priority:2"`
	ChannelID  string    `json:"channel_id" gorm:"uniqueIndex;not null"`
	ResourceID string    `json:"resource_id"`
	Expiration time.Time `json:"expiration" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}

// SyncState keeps the incremental sync cursor of one owner calendar
type SyncState struct {
	UserID         string     `json:"user_id" gorm:"primaryKey"`
	CalendarID     string     `json:"calendar_id" gorm:"primaryKey"`
	SyncCursor     string     `json:"-"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	LastFullSyncAt *time.Time `json:"last_full_sync_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (SyncState) TableName() string {
	return "calendar_sync_states"
}

// AllModels lists the calendar tables for migration
func AllModels() []interface{} {
	return []interface{}{&CalendarEvent{}, &OAuthCredential{}, &WebhookSubscription{}, &SyncState{}}
}
