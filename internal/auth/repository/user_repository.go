package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "taskflow-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// first loads one row into dest. A missing row is reported as found=false, not an error.
func (r *userRepository) first(dest interface{}, query string, args ...interface{}) (bool, error) {
	err := r.db.Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *userRepository) Create(user *authdomain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(user.Email)
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	var user authdomain.User
	found, err := r.first(&user, "email = ?", strings.ToLower(email))
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	var user authdomain.User
	found, err := r.first(&user, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *authdomain.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) SaveRefreshToken(token *authdomain.RefreshToken) error {
	return r.db.Create(token).Error
}

func (r *userRepository) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	var stored authdomain.RefreshToken
	found, err := r.first(&stored, "token = ?", token)
	if err != nil || !found {
		return nil, err
	}
	return &stored, nil
}

func (r *userRepository) DeleteRefreshToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.RefreshToken{}).Error
}

func (r *userRepository) DeleteRefreshTokensByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.RefreshToken{}).Error
}

func (r *userRepository) DeleteExpiredRefreshTokens(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now).Delete(&authdomain.RefreshToken{})
	return res.RowsAffected, res.Error
}
