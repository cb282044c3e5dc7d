package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/pkg/gcal"
)

func TestFullSyncUpsertIsIdempotent(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	f.api.events = []gcal.RemoteEvent{meeting("ev1", "Intro call", start)}

	res, err := f.engine.FullSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, SyncFull, res.Mode)
	assert.Equal(t, 1, res.Upserted)

	events, err := f.events.FindByUser("u1", repository.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	first := events[0]
	assert.True(t, first.IsMeeting)
	assert.Equal(t, "organizer@acme.com", first.OrganizerEmail)
	require.NoError(t, f.events.MarkPrepTaskCreated(first.ID, "task-1"))

	f.api.events[0].Summary = "Intro call (moved)"
	_, err = f.engine.FullSync(context.Background(), "u1")
	require.NoError(t, err)

	events, err = f.events.FindByUser("u1", repository.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, "Intro call (moved)", events[0].Summary)
	assert.True(t, events[0].PrepTaskCreated, "sync never resets prep state")
	require.NotNil(t, events[0].PrepTaskID)
	assert.Equal(t, "task-1", *events[0].PrepTaskID)
}

func TestFullSyncUsesDefaultWindow(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f.engine.now = func() time.Time { return now }

	_, err := f.engine.FullSync(context.Background(), "u1")
	require.NoError(t, err)

	calls := f.api.lists()
	require.Len(t, calls, 1)
	assert.Equal(t, now.Add(-24*time.Hour), calls[0].TimeMin)
	assert.Equal(t, now.Add(30*24*time.Hour), calls[0].TimeMax)

	state, err := f.states.Get("u1", domain.PrimaryCalendarID)
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", state.SyncCursor)
	assert.NotNil(t, state.LastFullSyncAt)
}

func TestIncrementalSyncUsesCursor(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")
	require.NoError(t, f.states.SaveCursor("u1", domain.PrimaryCalendarID, "abc", true))

	res, err := f.engine.IncrementalSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, SyncIncremental, res.Mode)
	assert.False(t, res.FellBack)

	calls := f.api.lists()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc", calls[0].SyncToken)
}

func TestIncrementalSyncWithoutCursorRunsFullSync(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")

	res, err := f.engine.IncrementalSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, SyncFull, res.Mode)
}

func TestExpiredCursorFallsBackToFullSync(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")
	require.NoError(t, f.states.SaveCursor("u1", domain.PrimaryCalendarID, "stale", true))
	f.api.expireCursor = true
	f.api.events = []gcal.RemoteEvent{meeting("ev1", "Intro call", time.Now().Add(time.Hour))}

	res, err := f.engine.IncrementalSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, SyncFull, res.Mode)
	assert.True(t, res.FellBack)
	assert.Equal(t, 1, res.Upserted)

	calls := f.api.lists()
	require.Len(t, calls, 2)
	assert.Equal(t, "stale", calls[0].SyncToken)
	assert.Empty(t, calls[1].SyncToken)
	assert.False(t, calls[1].TimeMin.IsZero())

	state, err := f.states.Get("u1", domain.PrimaryCalendarID)
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", state.SyncCursor)
}

func TestRemoteCancellationSoftCancels(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")
	f.api.events = []gcal.RemoteEvent{meeting("ev1", "Intro call", time.Now().Add(time.Hour))}
	_, err := f.engine.FullSync(context.Background(), "u1")
	require.NoError(t, err)

	f.api.events = []gcal.RemoteEvent{{ID: "ev1", Status: "cancelled"}, {ID: "never-seen", Status: "cancelled"}}
	res, err := f.engine.IncrementalSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)

	live, err := f.events.FindByUser("u1", repository.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := f.events.FindByUser("u1", repository.EventFilter{IncludeCancelled: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.EventCancelled, all[0].Status)
	assert.Equal(t, "Intro call", all[0].Summary)
}

func TestSyncRequiresConnection(t *testing.T) {
	f := newFixture(t, WebhookConfig{})

	_, err := f.engine.FullSync(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	require.NoError(t, f.creds.Save(&domain.OAuthCredential{
		UserID:       "u1",
		Provider:     domain.ProviderGoogle,
		AccessToken:  "old",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(2 * time.Minute),
	}))

	tok, err := f.manager.Token(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, 1, f.api.refreshCalls)

	stored, err := f.creds.Find("u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "refresh", stored.RefreshToken)

	_, err = f.manager.Token(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.refreshCalls, "valid token is reused")
}

func TestRevokedRefreshTokenDisconnects(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	require.NoError(t, f.creds.Save(&domain.OAuthCredential{
		UserID:       "u1",
		Provider:     domain.ProviderGoogle,
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	require.NoError(t, f.subs.Replace(&domain.WebhookSubscription{UserID: "u1", CalendarID: "primary", ChannelID: "ch", Expiration: time.Now().Add(time.Hour)}))
	f.api.refreshErr = gcal.ErrInvalidGrant

	_, err := f.engine.IncrementalSync(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrCredentialRevoked)

	cred, err := f.creds.Find("u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, cred)
	subs, err := f.subs.FindByOwner("u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")
	require.NoError(t, f.creds.Save(&domain.OAuthCredential{
		UserID:       "u2",
		Provider:     domain.ProviderGoogle,
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	f.connect(t, "u3")
	f.api.refreshErr = errors.New("network down")

	synced, failed, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 1, failed)
}

func TestAfterSyncHooksRun(t *testing.T) {
	f := newFixture(t, WebhookConfig{})
	f.connect(t, "u1")

	var seen []string
	f.engine.AfterSync(func(_ context.Context, userID string) { seen = append(seen, userID) })

	_, err := f.engine.FullSync(context.Background(), "u1")
	require.NoError(t, err)
	_, err = f.engine.FullSync(context.Background(), "nobody")
	require.Error(t, err)

	assert.Equal(t, []string{"u1"}, seen)
}
