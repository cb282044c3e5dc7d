package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func validToken() *Token {
	return &Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewService("client", "secret", "http://localhost/callback")
	s.endpoint = srv.URL + "/"
	s.config.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token"}
	return s
}

func TestListEvents_FollowsPagesAndReturnsSyncToken(t *testing.T) {
	var calls int
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))

		if r.URL.Query().Get("pageToken") == "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{{
					"id":          "evt-1",
					"status":      "confirmed",
					"summary":     "Intro call",
					"hangoutLink": "https://meet.google.com/abc-defg-hij",
					"start":       map[string]string{"dateTime": "2026-10-20T15:00:00Z"},
					"end":         map[string]string{"dateTime": "2026-10-20T15:30:00Z"},
					"organizer":   map[string]interface{}{"email": "Organizer@Acme.com", "self": true},
					"attendees": []map[string]interface{}{
						{"email": "organizer@acme.com", "organizer": true, "self": true},
						{"email": "jane@other.io", "displayName": "Jane Doe"},
					},
				}},
				"nextPageToken": "p2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{
				"id":     "evt-2",
				"status": "cancelled",
			}},
			"nextSyncToken": "sync-1",
		})
	})

	res, err := s.ListEvents(context.Background(), validToken(), "primary", ListOptions{
		TimeMin: time.Now().Add(-24 * time.Hour),
		TimeMax: time.Now().Add(30 * 24 * time.Hour),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "sync-1", res.NextSyncToken)
	require.Len(t, res.Events, 2)

	first := res.Events[0]
	assert.Equal(t, "evt-1", first.ID)
	assert.True(t, first.HasConference)
	assert.Equal(t, "organizer@acme.com", first.Organizer.Email)
	assert.Equal(t, "Jane Doe", first.Attendees[1].DisplayName)
	assert.Equal(t, time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC), first.Start.UTC())

	assert.True(t, res.Events[1].Cancelled())
}

func TestListEvents_ExpiredSyncToken(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stale", r.URL.Query().Get("syncToken"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Sync token is no longer valid"}}`))
	})

	_, err := s.ListEvents(context.Background(), validToken(), "primary", ListOptions{SyncToken: "stale"}, nil)
	assert.ErrorIs(t, err, ErrSyncTokenExpired)
}

func TestWatch_ReturnsChannel(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events/watch", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "web_hook", body["type"])
		assert.Equal(t, "chan-1", body["id"])
		assert.Equal(t, "secret-token", body["token"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         "chan-1",
			"resourceId": "res-1",
			"expiration": "1792000000000",
		})
	})

	ch, err := s.Watch(context.Background(), validToken(), "primary", "chan-1", "https://hooks.example.com/api/calendar/webhook", "secret-token", nil)
	require.NoError(t, err)
	assert.Equal(t, "res-1", ch.ResourceID)
	assert.Equal(t, time.UnixMilli(1792000000000), ch.Expiration)
}

func TestRefreshToken_InvalidGrant(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})

	_, err := s.RefreshToken(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefreshToken_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600,"scope":"calendar.readonly"}`))
	})

	tok, err := s.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "calendar.readonly", tok.Scope)
	assert.True(t, tok.Expiry.After(time.Now()))
}

func TestAuthCodeURL_RequestsOfflineAccess(t *testing.T) {
	s := NewService("client", "secret", "http://localhost/callback")
	u := s.AuthCodeURL("c3RhdGU=")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=c3RhdGU")
}
