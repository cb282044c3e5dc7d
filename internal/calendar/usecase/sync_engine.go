package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/pkg/gcal"
	"taskflow-backend/pkg/metrics"

	"go.uber.org/zap"
)

const (
	fullSyncLookback = 24 * time.Hour
	fullSyncForward  = 30 * 24 * time.Hour
)

type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// SyncResult summarizes one sync of an owner calendar
type SyncResult struct {
	Mode      SyncMode `json:"mode"`
	Upserted  int      `json:"upserted"`
	Cancelled int      `json:"cancelled"`
	// FellBack is set when an incremental sync had to restart as a full sync
	FellBack bool `json:"fell_back"`
}

// SyncHook runs after every successful sync of an owner
type SyncHook func(ctx context.Context, userID string)

// SyncEngine mirrors provider events into the local store
type SyncEngine struct {
	api     CalendarAPI
	creds   *CredentialManager
	events  repository.EventRepository
	states  repository.SyncStateRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	hooks []SyncHook
}

func NewSyncEngine(api CalendarAPI, creds *CredentialManager, events repository.EventRepository, states repository.SyncStateRepository, m *metrics.Metrics, logger *zap.Logger) *SyncEngine {
	return &SyncEngine{
		api:     api,
		creds:   creds,
		events:  events,
		states:  states,
		metrics: m,
		logger:  logger.Named("calendar-sync"),
		now:     time.Now,
	}
}

// AfterSync registers a hook run after each successful sync
func (e *SyncEngine) AfterSync(hook SyncHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// FullSync lists the default window around now and stores a fresh cursor
func (e *SyncEngine) FullSync(ctx context.Context, userID string) (*SyncResult, error) {
	res, err := e.fullSync(ctx, userID)
	e.record(SyncFull, err)
	if err != nil {
		return nil, err
	}
	e.runHooks(ctx, userID)
	return res, nil
}

// IncrementalSync applies changes since the stored cursor. Without a usable cursor it
// performs a full sync instead.
func (e *SyncEngine) IncrementalSync(ctx context.Context, userID string) (*SyncResult, error) {
	res, err := e.incrementalSync(ctx, userID)
	mode := SyncIncremental
	if res != nil {
		mode = res.Mode
	}
	e.record(mode, err)
	if err != nil {
		return nil, err
	}
	e.runHooks(ctx, userID)
	return res, nil
}

// SyncAll runs an incremental sync for every connected owner, continuing past failures
func (e *SyncEngine) SyncAll(ctx context.Context) (synced, failed int, err error) {
	owners, err := e.creds.Owners()
	if err != nil {
		return 0, 0, err
	}
	for _, owner := range owners {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if _, err := e.IncrementalSync(ctx, owner); err != nil {
			failed++
			e.logger.Warn("sync failed", zap.String("owner_id", owner), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (e *SyncEngine) fullSync(ctx context.Context, userID string) (*SyncResult, error) {
	token, err := e.creds.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	list, err := e.api.ListEvents(ctx, token, domain.PrimaryCalendarID, gcal.ListOptions{
		TimeMin: now.Add(-fullSyncLookback),
		TimeMax: now.Add(fullSyncForward),
	}, e.creds.Persist(userID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	res := &SyncResult{Mode: SyncFull}
	if err := e.apply(userID, list.Events, res); err != nil {
		return nil, err
	}
	if err := e.states.SaveCursor(userID, domain.PrimaryCalendarID, list.NextSyncToken, true); err != nil {
		return nil, err
	}

	e.logger.Info("full sync done", zap.String("owner_id", userID), zap.Int("upserted", res.Upserted), zap.Int("cancelled", res.Cancelled))
	return res, nil
}

func (e *SyncEngine) incrementalSync(ctx context.Context, userID string) (*SyncResult, error) {
	state, err := e.states.Get(userID, domain.PrimaryCalendarID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.SyncCursor == "" {
		return e.fullSync(ctx, userID)
	}

	token, err := e.creds.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	list, err := e.api.ListEvents(ctx, token, domain.PrimaryCalendarID, gcal.ListOptions{SyncToken: state.SyncCursor}, e.creds.Persist(userID))
	if errors.Is(err, gcal.ErrSyncTokenExpired) {
		e.logger.Info("sync cursor expired, running full sync", zap.String("owner_id", userID))
		if err := e.states.ClearCursor(userID, domain.PrimaryCalendarID); err != nil {
			return nil, err
		}
		res, err := e.fullSync(ctx, userID)
		if err != nil {
			return nil, err
		}
		res.FellBack = true
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list changed events: %w", err)
	}

	res := &SyncResult{Mode: SyncIncremental}
	if err := e.apply(userID, list.Events, res); err != nil {
		return nil, err
	}

	cursor := list.NextSyncToken
	if cursor == "" {
		cursor = state.SyncCursor
	}
	if err := e.states.SaveCursor(userID, domain.PrimaryCalendarID, cursor, false); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *SyncEngine) apply(userID string, events []gcal.RemoteEvent, res *SyncResult) error {
	for _, ev := range events {
		if ev.Cancelled() {
			found, err := e.events.MarkCancelled(userID, ev.CalendarID, ev.ID)
			if err != nil {
				return err
			}
			if found {
				res.Cancelled++
			}
			continue
		}
		if err := e.events.Upsert(toLocal(userID, ev)); err != nil {
			return err
		}
		res.Upserted++
	}
	return nil
}

func (e *SyncEngine) record(mode SyncMode, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.CalendarSync(string(mode), outcome)
}

func (e *SyncEngine) runHooks(ctx context.Context, userID string) {
	e.mu.RLock()
	hooks := append([]SyncHook(nil), e.hooks...)
	e.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, userID)
	}
}
