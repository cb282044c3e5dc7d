package usecase

import (
	"context"
	"crypto/subtle"
	"time"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resource states sent by the provider in X-Goog-Resource-State
const (
	StateSync      = "sync"
	StateExists    = "exists"
	StateNotExists = "not_exists"
)

// WebhookConfig holds the public push endpoint settings
type WebhookConfig struct {
	Address      string
	ChannelToken string
	RenewalLead  time.Duration
}

// WebhookManager registers, renews and stops push channels and reacts to their notifications
type WebhookManager struct {
	api        CalendarAPI
	creds      *CredentialManager
	subs       repository.SubscriptionRepository
	sync       *SyncEngine
	dispatcher Dispatcher
	cfg        WebhookConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewWebhookManager(api CalendarAPI, creds *CredentialManager, subs repository.SubscriptionRepository, sync *SyncEngine, cfg WebhookConfig, m *metrics.Metrics, logger *zap.Logger) *WebhookManager {
	if cfg.RenewalLead <= 0 {
		cfg.RenewalLead = time.Hour
	}
	return &WebhookManager{
		api:     api,
		creds:   creds,
		subs:    subs,
		sync:    sync,
		cfg:     cfg,
		metrics: m,
		logger:  logger.Named("webhooks"),
		now:     time.Now,
	}
}

// SetDispatcher sets where accepted notifications are handed off. Without one they are
// processed on a detached goroutine.
func (w *WebhookManager) SetDispatcher(d Dispatcher) {
	w.dispatcher = d
}

// Enabled reports whether push channels can be registered
func (w *WebhookManager) Enabled() bool {
	return w.cfg.Address != ""
}

// Register opens a new push channel for the owner calendar, replacing any previous one
func (w *WebhookManager) Register(ctx context.Context, userID, calendarID string) (*domain.WebhookSubscription, error) {
	if !w.Enabled() {
		return nil, ErrWebhookNotConfigured
	}
	token, err := w.creds.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	channelID := uuid.New().String()
	ch, err := w.api.Watch(ctx, token, calendarID, channelID, w.cfg.Address, w.cfg.ChannelToken, w.creds.Persist(userID))
	if err != nil {
		return nil, err
	}

	sub := &domain.WebhookSubscription{
		UserID:     userID,
		CalendarID: calendarID,
		ChannelID:  ch.ID,
		ResourceID: ch.ResourceID,
		Expiration: ch.Expiration,
	}
	if err := w.subs.Replace(sub); err != nil {
		return nil, err
	}

	w.logger.Info("channel registered",
		zap.String("owner_id", userID),
		zap.String("channel_id", sub.ChannelID),
		zap.Time("expiration", sub.Expiration))
	return sub, nil
}

// Stop closes the channel at the provider and forgets it locally. A provider failure is
// only logged; the local record is removed regardless.
func (w *WebhookManager) Stop(ctx context.Context, sub *domain.WebhookSubscription) error {
	w.stopRemote(ctx, sub)
	return w.subs.DeleteByChannel(sub.ChannelID)
}

func (w *WebhookManager) stopRemote(ctx context.Context, sub *domain.WebhookSubscription) {
	log := w.logger.With(zap.String("owner_id", sub.UserID), zap.String("channel_id", sub.ChannelID))

	token, err := w.creds.Token(ctx, sub.UserID)
	if err != nil {
		log.Warn("no token to stop channel", zap.Error(err))
		return
	}
	if err := w.api.StopChannel(ctx, token, sub.ChannelID, sub.ResourceID, w.creds.Persist(sub.UserID)); err != nil {
		log.Warn("stop channel failed", zap.Error(err))
	}
}

// RenewIfExpiringSoon replaces every channel expiring within the renewal lead.
// Register replaces the (owner, calendar) row, then the old channel is stopped at the provider.
func (w *WebhookManager) RenewIfExpiringSoon(ctx context.Context) (renewed, failed int, err error) {
	if !w.Enabled() {
		return 0, 0, nil
	}

	subs, err := w.subs.FindExpiringBefore(w.now().Add(w.cfg.RenewalLead))
	if err != nil {
		return 0, 0, err
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return renewed, failed, ctx.Err()
		}
		// The replacement is registered first so a failed watch leaves the old row for the next pass
		if _, err := w.Register(ctx, sub.UserID, sub.CalendarID); err != nil {
			failed++
			w.logger.Warn("renew channel", zap.String("owner_id", sub.UserID), zap.String("channel_id", sub.ChannelID), zap.Error(err))
			continue
		}
		w.stopRemote(ctx, sub)
		renewed++
	}
	return renewed, failed, nil
}

// Accept validates a delivery and hands it off without processing it inline
func (w *WebhookManager) Accept(ctx context.Context, channelID, resourceState, channelToken string) error {
	if w.cfg.ChannelToken != "" && subtle.ConstantTimeCompare([]byte(channelToken), []byte(w.cfg.ChannelToken)) != 1 {
		return ErrInvalidChannelToken
	}
	w.metrics.WebhookNotification(resourceState)

	if resourceState == StateSync {
		return nil
	}

	if w.dispatcher != nil {
		return w.dispatcher.Publish(ctx, channelID, resourceState)
	}
	go func() {
		if err := w.OnNotification(context.Background(), channelID, resourceState); err != nil {
			w.logger.Warn("process notification", zap.String("channel_id", channelID), zap.Error(err))
		}
	}()
	return nil
}

// OnNotification processes one channel notification
func (w *WebhookManager) OnNotification(ctx context.Context, channelID, resourceState string) error {
	if resourceState != StateExists {
		return nil
	}

	sub, err := w.subs.FindByChannel(channelID)
	if err != nil {
		return err
	}
	if sub == nil {
		w.logger.Info("notification for unknown channel ignored", zap.String("channel_id", channelID))
		return nil
	}

	_, err = w.sync.IncrementalSync(ctx, sub.UserID)
	return err
}
