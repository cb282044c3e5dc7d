package domain

import "time"

// Device is a browser or phone registered for push notifications
type Device struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"`
	Label      string    `json:"label"`
	LastSeenAt time.Time `json:"last_seen_at" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Device) TableName() string {
	return "devices"
}
