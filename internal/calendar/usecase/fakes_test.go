package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/internal/testutil"
	"taskflow-backend/pkg/gcal"
)

type fakeAPI struct {
	mu sync.Mutex

	events        []gcal.RemoteEvent
	expireCursor  bool
	refreshErr    error
	stopErr       error
	watchErr      error
	listCalls     []gcal.ListOptions
	refreshCalls  int
	watched       []string
	stopped       []string
	cursorCounter int
}

func (f *fakeAPI) Configured() bool { return true }

func (f *fakeAPI) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeAPI) Exchange(_ context.Context, code string) (*gcal.Token, error) {
	return &gcal.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAPI) RefreshToken(_ context.Context, refresh string) (*gcal.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &gcal.Token{AccessToken: "fresh", RefreshToken: refresh, Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAPI) ListEvents(_ context.Context, _ *gcal.Token, calendarID string, opts gcal.ListOptions, _ gcal.TokenUpdateFunc) (*gcal.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, opts)
	if opts.SyncToken != "" && f.expireCursor {
		return nil, gcal.ErrSyncTokenExpired
	}
	f.cursorCounter++
	events := make([]gcal.RemoteEvent, len(f.events))
	for i, ev := range f.events {
		ev.CalendarID = calendarID
		events[i] = ev
	}
	return &gcal.ListResult{Events: events, NextSyncToken: fmt.Sprintf("cursor-%d", f.cursorCounter)}, nil
}

func (f *fakeAPI) Watch(_ context.Context, _ *gcal.Token, _, channelID, _, _ string, _ gcal.TokenUpdateFunc) (*gcal.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.watched = append(f.watched, channelID)
	return &gcal.Channel{ID: channelID, ResourceID: "res-" + channelID, Expiration: time.Now().Add(7 * 24 * time.Hour)}, nil
}

func (f *fakeAPI) StopChannel(_ context.Context, _ *gcal.Token, channelID, _ string, _ gcal.TokenUpdateFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, channelID)
	return f.stopErr
}

func (f *fakeAPI) lists() []gcal.ListOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gcal.ListOptions(nil), f.listCalls...)
}

type calendarFixture struct {
	api      *fakeAPI
	events   repository.EventRepository
	creds    repository.CredentialRepository
	subs     repository.SubscriptionRepository
	states   repository.SyncStateRepository
	manager  *CredentialManager
	engine   *SyncEngine
	webhooks *WebhookManager
	conn     ConnectionUsecase
}

func newFixture(t *testing.T, cfg WebhookConfig) *calendarFixture {
	t.Helper()
	db := testutil.NewDB(t, domain.AllModels()...)

	f := &calendarFixture{
		api:    &fakeAPI{},
		events: repository.NewEventRepository(db),
		creds:  repository.NewCredentialRepository(db),
		subs:   repository.NewSubscriptionRepository(db),
		states: repository.NewSyncStateRepository(db),
	}
	log := zap.NewNop()
	f.manager = NewCredentialManager(f.api, f.creds, f.subs, f.states, log)
	f.engine = NewSyncEngine(f.api, f.manager, f.events, f.states, nil, log)
	f.webhooks = NewWebhookManager(f.api, f.manager, f.subs, f.engine, cfg, nil, log)
	f.conn = NewConnectionUsecase(f.api, f.manager, f.engine, f.webhooks, f.events, f.subs, f.states, log)
	return f
}

func (f *calendarFixture) connect(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.creds.Save(&domain.OAuthCredential{
		UserID:       userID,
		Provider:     domain.ProviderGoogle,
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))
}

func meeting(id, summary string, start time.Time) gcal.RemoteEvent {
	return gcal.RemoteEvent{
		ID:        id,
		Summary:   summary,
		Status:    "confirmed",
		Start:     start,
		End:       start.Add(30 * time.Minute),
		Organizer: gcal.Attendee{Email: "organizer@acme.com", Organizer: true},
		Attendees: []gcal.Attendee{
			{Email: "organizer@acme.com", Organizer: true, Self: true},
			{Email: "jane@other.io", DisplayName: "Jane Doe"},
		},
	}
}
