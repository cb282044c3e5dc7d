// Package gcal wraps the Google Calendar API for the calendar mirror.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	// ErrSyncTokenExpired means the provider rejected an incremental sync cursor (HTTP 410).
	ErrSyncTokenExpired = errors.New("calendar sync token expired")
	// ErrInvalidGrant means the refresh token was revoked or expired.
	ErrInvalidGrant = errors.New("refresh token rejected (invalid_grant)")
)

// Scopes requested on connect.
var Scopes = []string{
	calendar.CalendarReadonlyScope,
	calendar.CalendarEventsReadonlyScope,
}

const pageSize = 250

// Token is the credential material persisted per owner.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
}

// TokenUpdateFunc persists a token refreshed in the middle of an API call.
type TokenUpdateFunc func(*Token) error

// ListOptions selects between cursor and window listing. SyncToken wins when set.
type ListOptions struct {
	SyncToken string
	TimeMin   time.Time
	TimeMax   time.Time
}

// ListResult is every page of one listing, plus the cursor for the next incremental call.
type ListResult struct {
	Events        []RemoteEvent
	NextSyncToken string
}

// Channel is a registered push-notification channel.
type Channel struct {
	ID         string
	ResourceID string
	Expiration time.Time
}

type Service struct {
	config   *oauth2.Config
	endpoint string // overrides the API base URL in tests
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, mapTokenError(err)
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(fromOAuthToken(t)); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret, redirectURL string) *Service {
	return &Service{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// Configured reports whether OAuth client credentials are present.
func (s *Service) Configured() bool {
	return s.config.ClientID != "" && s.config.ClientSecret != ""
}

// AuthCodeURL builds the consent URL. Offline access with forced consent
// makes Google return a refresh token on every connect.
func (s *Service) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", mapTokenError(err))
	}
	return fromOAuthToken(tok), nil
}

// RefreshToken derives a fresh access token from a refresh token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrInvalidGrant
	}
	src := s.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, mapTokenError(err)
	}
	out := fromOAuthToken(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

// CalendarService creates a Calendar API client for the given token.
func (s *Service) CalendarService(ctx context.Context, token *Token, onTokenRefresh TokenUpdateFunc) (*calendar.Service, error) {
	current := &oauth2.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       token.Expiry,
	}

	wrapped := &notifyTokenSource{
		src:      s.config.TokenSource(ctx, current),
		current:  current,
		callback: onTokenRefresh,
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, wrapped))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}

// ListEvents walks every page of an events listing. An expired sync token
// surfaces as ErrSyncTokenExpired.
func (s *Service) ListEvents(ctx context.Context, token *Token, calendarID string, opts ListOptions, onTokenRefresh TokenUpdateFunc) (*ListResult, error) {
	srv, err := s.CalendarService(ctx, token, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	result := &ListResult{}
	pageToken := ""
	for {
		call := srv.Events.List(calendarID).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(pageSize).
			Context(ctx)

		if opts.SyncToken != "" {
			call = call.SyncToken(opts.SyncToken)
		} else {
			if !opts.TimeMin.IsZero() {
				call = call.TimeMin(opts.TimeMin.Format(time.RFC3339))
			}
			if !opts.TimeMax.IsZero() {
				call = call.TimeMax(opts.TimeMax.Format(time.RFC3339))
			}
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			if isGone(err) {
				return nil, ErrSyncTokenExpired
			}
			return nil, fmt.Errorf("unable to list events: %w", mapTokenError(err))
		}

		for _, item := range resp.Items {
			result.Events = append(result.Events, convertEvent(calendarID, item))
		}

		if resp.NextPageToken == "" {
			result.NextSyncToken = resp.NextSyncToken
			return result, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Watch registers a web_hook push channel on a calendar's events.
func (s *Service) Watch(ctx context.Context, token *Token, calendarID, channelID, address, channelToken string, onTokenRefresh TokenUpdateFunc) (*Channel, error) {
	srv, err := s.CalendarService(ctx, token, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	req := &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
		Token:   channelToken,
	}

	resp, err := srv.Events.Watch(calendarID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to watch calendar: %w", mapTokenError(err))
	}

	return &Channel{
		ID:         resp.Id,
		ResourceID: resp.ResourceId,
		Expiration: time.UnixMilli(resp.Expiration),
	}, nil
}

// StopChannel stops a push channel.
func (s *Service) StopChannel(ctx context.Context, token *Token, channelID, resourceID string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.CalendarService(ctx, token, onTokenRefresh)
	if err != nil {
		return err
	}

	err = srv.Channels.Stop(&calendar.Channel{Id: channelID, ResourceId: resourceID}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to stop channel: %w", err)
	}
	return nil
}

func fromOAuthToken(t *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusGone
}

func mapTokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || strings.Contains(string(rerr.Body), "invalid_grant") {
			return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
	}
	return err
}
