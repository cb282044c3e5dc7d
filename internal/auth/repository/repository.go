package repository

import (
	"time"

	authdomain "taskflow-backend/internal/auth/domain"
)

// UserRepository stores owner accounts and their refresh tokens
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByEmail(email string) (*authdomain.User, error)
	FindByID(id string) (*authdomain.User, error)
	Update(user *authdomain.User) error

	SaveRefreshToken(token *authdomain.RefreshToken) error
	FindRefreshToken(token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(token string) error
	DeleteRefreshTokensByUser(userID string) error
	// DeleteExpiredRefreshTokens removes tokens that expired before now and returns how many
	DeleteExpiredRefreshTokens(now time.Time) (int64, error)
}

// DeviceRepository is the push device registry
type DeviceRepository interface {
	// Register adds a device or moves an already known token to userID
	Register(userID, token, label string) error
	ListByOwner(userID string) ([]authdomain.Device, error)
	Remove(token string) error
	RemoveByOwner(userID string) error
	// RemoveStale drops devices not registered again since before
	RemoveStale(before time.Time) (int64, error)
}
