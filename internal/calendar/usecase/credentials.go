package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/pkg/gcal"

	"go.uber.org/zap"
)

// refreshMargin is how long an access token must still be valid to be used as is
const refreshMargin = 5 * time.Minute

// CredentialManager hands out valid provider tokens, refreshing them when needed
type CredentialManager struct {
	api    CalendarAPI
	creds  repository.CredentialRepository
	subs   repository.SubscriptionRepository
	states repository.SyncStateRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewCredentialManager(api CalendarAPI, creds repository.CredentialRepository, subs repository.SubscriptionRepository, states repository.SyncStateRepository, logger *zap.Logger) *CredentialManager {
	return &CredentialManager{
		api:    api,
		creds:  creds,
		subs:   subs,
		states: states,
		logger: logger.Named("credentials"),
		now:    time.Now,
	}
}

// Token returns a usable token for the owner. A revoked refresh token disconnects the owner.
func (m *CredentialManager) Token(ctx context.Context, userID string) (*gcal.Token, error) {
	cred, err := m.creds.Find(userID, domain.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNotConnected
	}
	if cred.ValidAt(m.now(), refreshMargin) {
		return toToken(cred), nil
	}

	fresh, err := m.api.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, gcal.ErrInvalidGrant) {
			m.logger.Warn("refresh token revoked, disconnecting", zap.String("owner_id", userID))
			if rerr := m.Revoke(userID); rerr != nil {
				m.logger.Error("remove revoked credential", zap.String("owner_id", userID), zap.Error(rerr))
			}
			return nil, ErrCredentialRevoked
		}
		return nil, fmt.Errorf("refresh access token: %w", err)
	}

	if err := m.Store(userID, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Store saves a token, keeping the previous refresh token when the provider omits it
func (m *CredentialManager) Store(userID string, tok *gcal.Token) error {
	refresh := tok.RefreshToken
	if refresh == "" {
		existing, err := m.creds.Find(userID, domain.ProviderGoogle)
		if err != nil {
			return err
		}
		if existing != nil {
			refresh = existing.RefreshToken
			tok.RefreshToken = refresh
		}
	}

	return m.creds.Save(&domain.OAuthCredential{
		UserID:       userID,
		Provider:     domain.ProviderGoogle,
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		Expiry:       tok.Expiry,
		Scope:        tok.Scope,
	})
}

// Persist returns a callback that saves tokens refreshed during an API call
func (m *CredentialManager) Persist(userID string) gcal.TokenUpdateFunc {
	return func(tok *gcal.Token) error {
		return m.Store(userID, tok)
	}
}

// Revoke removes every local trace of the owner's integration except mirrored events
func (m *CredentialManager) Revoke(userID string) error {
	if err := m.subs.DeleteByOwner(userID); err != nil {
		return err
	}
	if err := m.states.DeleteByOwner(userID); err != nil {
		return err
	}
	return m.creds.Delete(userID, domain.ProviderGoogle)
}

// Find returns the stored credential, or nil
func (m *CredentialManager) Find(userID string) (*domain.OAuthCredential, error) {
	return m.creds.Find(userID, domain.ProviderGoogle)
}

// Owners lists every owner with a stored credential
func (m *CredentialManager) Owners() ([]string, error) {
	return m.creds.ListOwners(domain.ProviderGoogle)
}

func toToken(c *domain.OAuthCredential) *gcal.Token {
	return &gcal.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
		Scope:        c.Scope,
	}
}
