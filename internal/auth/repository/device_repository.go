package repository

import (
	"fmt"
	"time"

	authdomain "taskflow-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Register(userID, token, label string) error {
	now := time.Now().UTC()
	device := &authdomain.Device{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		Label:      label,
		LastSeenAt: now,
		CreatedAt:  now,
	}

	// A token belongs to the browser, so a second login on it takes it over
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "label", "last_seen_at"}),
	}).Create(device).Error
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	return nil
}

func (r *deviceRepository) ListByOwner(userID string) ([]authdomain.Device, error) {
	var devices []authdomain.Device
	if err := r.db.Where("user_id = ?", userID).Order("last_seen_at DESC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

func (r *deviceRepository) Remove(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.Device{}).Error
}

func (r *deviceRepository) RemoveByOwner(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.Device{}).Error
}

func (r *deviceRepository) RemoveStale(before time.Time) (int64, error) {
	res := r.db.Where("last_seen_at < ?", before).Delete(&authdomain.Device{})
	if res.Error != nil {
		return 0, fmt.Errorf("remove stale devices: %w", res.Error)
	}
	return res.RowsAffected, nil
}
