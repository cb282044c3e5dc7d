package repository

import (
	"errors"
	"fmt"
	"time"

	"taskflow-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a GORM-backed SubscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Replace(sub *domain.WebhookSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND calendar_id = ?", sub.UserID, sub.CalendarID).Delete(&domain.WebhookSubscription{}).Error; err != nil {
			return fmt.Errorf("remove previous subscription: %w", err)
		}
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("create subscription %s: %w", sub.ChannelID, err)
		}
		return nil
	})
}

func (r *subscriptionRepository) FindByChannel(channelID string) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	if err := r.db.Where("channel_id = ?", channelID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find subscription %s: %w", channelID, err)
	}
	return &sub, nil
}

func (r *subscriptionRepository) FindByOwner(userID string) ([]*domain.WebhookSubscription, error) {
	var subs []*domain.WebhookSubscription
	if err := r.db.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions for user %s: %w", userID, err)
	}
	return subs, nil
}

func (r *subscriptionRepository) FindExpiringBefore(t time.Time) ([]*domain.WebhookSubscription, error) {
	var subs []*domain.WebhookSubscription
	if err := r.db.Where("expiration < ?", t).Order("expiration ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list expiring subscriptions: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepository) DeleteByChannel(channelID string) error {
	if err := r.db.Where("channel_id = ?", channelID).Delete(&domain.WebhookSubscription{}).Error; err != nil {
		return fmt.Errorf("delete subscription %s: %w", channelID, err)
	}
	return nil
}

func (r *subscriptionRepository) DeleteByOwner(userID string) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&domain.WebhookSubscription{}).Error; err != nil {
		return fmt.Errorf("delete subscriptions for user %s: %w", userID, err)
	}
	return nil
}

type syncStateRepository struct {
	db *gorm.DB
}

// NewSyncStateRepository creates a GORM-backed SyncStateRepository
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) Get(userID, calendarID string) (*domain.SyncState, error) {
	var state domain.SyncState
	if err := r.db.Where("user_id = ? AND calendar_id = ?", userID, calendarID).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find sync state for user %s: %w", userID, err)
	}
	return &state, nil
}

func (r *syncStateRepository) SaveCursor(userID, calendarID, cursor string, full bool) error {
	now := time.Now()
	state := &domain.SyncState{
		UserID:       userID,
		CalendarID:   calendarID,
		SyncCursor:   cursor,
		LastSyncedAt: &now,
		UpdatedAt:    now,
	}
	columns := []string{"sync_cursor", "last_synced_at", "updated_at"}
	if full {
		state.LastFullSyncAt = &now
		columns = append(columns, "last_full_sync_at")
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "calendar_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(state).Error
	if err != nil {
		return fmt.Errorf("save sync cursor for user %s: %w", userID, err)
	}
	return nil
}

func (r *syncStateRepository) ClearCursor(userID, calendarID string) error {
	err := r.db.Model(&domain.SyncState{}).
		Where("user_id = ? AND calendar_id = ?", userID, calendarID).
		Update("sync_cursor", "").Error
	if err != nil {
		return fmt.Errorf("clear sync cursor for user %s: %w", userID, err)
	}
	return nil
}

func (r *syncStateRepository) DeleteByOwner(userID string) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&domain.SyncState{}).Error; err != nil {
		return fmt.Errorf("delete sync state for user %s: %w", userID, err)
	}
	return nil
}
