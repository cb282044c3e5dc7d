package usecase

import (
	"context"
	"errors"
	"time"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/pkg/gcal"
)

var (
	ErrNotConnected          = errors.New("calendar is not connected")
	ErrCredentialRevoked     = errors.New("calendar access was revoked, reconnect required")
	ErrProviderNotConfigured = errors.New("google oauth client is not configured")
	ErrWebhookNotConfigured  = errors.New("webhook base url is not configured")
	ErrInvalidState          = errors.New("invalid oauth state")
	ErrInvalidChannelToken   = errors.New("invalid channel token")
	// ErrSyncCursorExpired is handled inside the sync engine and never returned to callers
	ErrSyncCursorExpired = gcal.ErrSyncTokenExpired
)

// CalendarAPI is the provider surface used by the calendar usecases. *gcal.Service implements it.
type CalendarAPI interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*gcal.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*gcal.Token, error)
	ListEvents(ctx context.Context, token *gcal.Token, calendarID string, opts gcal.ListOptions, onRefresh gcal.TokenUpdateFunc) (*gcal.ListResult, error)
	Watch(ctx context.Context, token *gcal.Token, calendarID, channelID, address, channelToken string, onRefresh gcal.TokenUpdateFunc) (*gcal.Channel, error)
	StopChannel(ctx context.Context, token *gcal.Token, channelID, resourceID string, onRefresh gcal.TokenUpdateFunc) error
}

// Dispatcher carries webhook notifications out of the request that received them
type Dispatcher interface {
	Publish(ctx context.Context, channelID, resourceState string) error
}

// ConnectionStatus describes an owner's calendar integration
type ConnectionStatus struct {
	Connected         bool       `json:"connected"`
	Provider          string     `json:"provider,omitempty"`
	Scope             string     `json:"scope,omitempty"`
	TokenExpiry       *time.Time `json:"token_expiry,omitempty"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	LastFullSyncAt    *time.Time `json:"last_full_sync_at,omitempty"`
	WebhookActive     bool       `json:"webhook_active"`
	WebhookExpiration *time.Time `json:"webhook_expiration,omitempty"`
}

// ConnectionUsecase is the owner-facing calendar integration
type ConnectionUsecase interface {
	// ConnectURL returns the provider consent URL; the state carries the owner id
	ConnectURL(userID string) (string, error)
	// HandleCallback finishes the OAuth flow and returns the connected owner id
	HandleCallback(ctx context.Context, state, code string) (string, error)
	Status(userID string) (*ConnectionStatus, error)
	// Disconnect removes credentials and subscriptions. Mirrored events are kept.
	Disconnect(ctx context.Context, userID string) error
	Sync(ctx context.Context, userID string) (*SyncResult, error)
	ListEvents(userID string, filter repository.EventFilter) ([]*domain.CalendarEvent, error)
	ExportICS(userID string, filter repository.EventFilter) ([]byte, error)
}
