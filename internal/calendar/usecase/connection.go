package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"

	"go.uber.org/zap"
)

type connectionUsecase struct {
	api      CalendarAPI
	creds    *CredentialManager
	sync     *SyncEngine
	webhooks *WebhookManager
	events   repository.EventRepository
	subs     repository.SubscriptionRepository
	states   repository.SyncStateRepository
	logger   *zap.Logger
}

// NewConnectionUsecase creates the owner-facing calendar usecase
func NewConnectionUsecase(api CalendarAPI, creds *CredentialManager, sync *SyncEngine, webhooks *WebhookManager, events repository.EventRepository, subs repository.SubscriptionRepository, states repository.SyncStateRepository, logger *zap.Logger) ConnectionUsecase {
	return &connectionUsecase{
		api:      api,
		creds:    creds,
		sync:     sync,
		webhooks: webhooks,
		events:   events,
		subs:     subs,
		states:   states,
		logger:   logger.Named("calendar"),
	}
}

// EncodeState packs the owner id into the OAuth state parameter
func EncodeState(userID string) string {
	return base64.URLEncoding.EncodeToString([]byte(userID))
}

// DecodeState recovers the owner id from the OAuth state parameter
func DecodeState(state string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(state)
	if err != nil {
		// older clients sent standard encoding
		raw, err = base64.StdEncoding.DecodeString(state)
		if err != nil {
			return "", ErrInvalidState
		}
	}
	userID := strings.TrimSpace(string(raw))
	if userID == "" {
		return "", ErrInvalidState
	}
	return userID, nil
}

func (u *connectionUsecase) ConnectURL(userID string) (string, error) {
	if !u.api.Configured() {
		return "", ErrProviderNotConfigured
	}
	return u.api.AuthCodeURL(EncodeState(userID)), nil
}

func (u *connectionUsecase) HandleCallback(ctx context.Context, state, code string) (string, error) {
	userID, err := DecodeState(state)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", fmt.Errorf("missing authorization code: %w", ErrInvalidState)
	}

	tok, err := u.api.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	if err := u.creds.Store(userID, tok); err != nil {
		return "", err
	}

	log := u.logger.With(zap.String("owner_id", userID))
	if _, err := u.sync.FullSync(ctx, userID); err != nil {
		log.Error("initial sync failed", zap.Error(err))
	}
	if u.webhooks.Enabled() {
		if _, err := u.webhooks.Register(ctx, userID, domain.PrimaryCalendarID); err != nil {
			log.Warn("register channel failed, relying on periodic sync", zap.Error(err))
		}
	}

	log.Info("calendar connected")
	return userID, nil
}

func (u *connectionUsecase) Status(userID string) (*ConnectionStatus, error) {
	cred, err := u.creds.Find(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &ConnectionStatus{Connected: false}, nil
	}

	status := &ConnectionStatus{
		Connected:   true,
		Provider:    cred.Provider,
		Scope:       cred.Scope,
		TokenExpiry: &cred.Expiry,
	}

	state, err := u.states.Get(userID, domain.PrimaryCalendarID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		status.LastSyncedAt = state.LastSyncedAt
		status.LastFullSyncAt = state.LastFullSyncAt
	}

	subs, err := u.subs.FindByOwner(userID)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		exp := sub.Expiration
		status.WebhookActive = true
		status.WebhookExpiration = &exp
	}
	return status, nil
}

func (u *connectionUsecase) Disconnect(ctx context.Context, userID string) error {
	subs, err := u.subs.FindByOwner(userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		u.webhooks.stopRemote(ctx, sub)
	}

	if err := u.creds.Revoke(userID); err != nil {
		return err
	}
	u.logger.Info("calendar disconnected", zap.String("owner_id", userID), zap.Int("channels", len(subs)))
	return nil
}

func (u *connectionUsecase) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	cred, err := u.creds.Find(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNotConnected
	}
	res, err := u.sync.IncrementalSync(ctx, userID)
	if err != nil && !errors.Is(err, ErrCredentialRevoked) {
		return nil, fmt.Errorf("sync calendar: %w", err)
	}
	return res, err
}

func (u *connectionUsecase) ListEvents(userID string, filter repository.EventFilter) ([]*domain.CalendarEvent, error) {
	return u.events.FindByUser(userID, filter)
}

func (u *connectionUsecase) ExportICS(userID string, filter repository.EventFilter) ([]byte, error) {
	events, err := u.events.FindByUser(userID, filter)
	if err != nil {
		return nil, err
	}
	return EncodeICS(events)
}
