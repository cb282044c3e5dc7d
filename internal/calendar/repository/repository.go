package repository

import (
	"time"

	"taskflow-backend/internal/calendar/domain"
)

// EventFilter narrows an event listing
type EventFilter struct {
	From             *time.Time
	To               *time.Time
	MeetingsOnly     bool
	IncludeCancelled bool
}

// EventRepository persists the calendar mirror
type EventRepository interface {
	// Upsert inserts the event or updates its mutable fields on (owner, calendar, external id).
	// Prep task fields are never touched by an upsert.
	Upsert(event *domain.CalendarEvent) error
	// MarkCancelled soft-cancels a mirrored event. Unknown events are ignored.
	MarkCancelled(userID, calendarID, externalEventID string) (bool, error)
	FindByID(id string) (*domain.CalendarEvent, error)
	FindByUser(userID string, filter EventFilter) ([]*domain.CalendarEvent, error)
	// FindPrepCandidates returns live meetings starting in [from, to] without a prep task
	FindPrepCandidates(userID string, from, to time.Time) ([]*domain.CalendarEvent, error)
	FindByPrepTask(taskID string) (*domain.CalendarEvent, error)
	MarkPrepTaskCreated(eventID, taskID string) error
	// ClearPrepTask unlinks a deleted task but keeps prep_task_created set
	ClearPrepTask(taskID string) error
}

// CredentialRepository persists provider OAuth tokens
type CredentialRepository interface {
	Save(cred *domain.OAuthCredential) error
	Find(userID, provider string) (*domain.OAuthCredential, error)
	Delete(userID, provider string) error
	ListOwners(provider string) ([]string, error)
}

// SubscriptionRepository persists push channels
type SubscriptionRepository interface {
	// Replace stores sub as the only subscription of its owner calendar
	Replace(sub *domain.WebhookSubscription) error
	FindByChannel(channelID string) (*domain.WebhookSubscription, error)
	FindByOwner(userID string) ([]*domain.WebhookSubscription, error)
	FindExpiringBefore(t time.Time) ([]*domain.WebhookSubscription, error)
	DeleteByChannel(channelID string) error
	DeleteByOwner(userID string) error
}

// SyncStateRepository persists incremental sync cursors
type SyncStateRepository interface {
	Get(userID, calendarID string) (*domain.SyncState, error)
	SaveCursor(userID, calendarID, cursor string, full bool) error
	ClearCursor(userID, calendarID string) error
	DeleteByOwner(userID string) error
}
