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

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a GORM-backed CredentialRepository
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Save(cred *domain.OAuthCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	cred.UpdatedAt = time.Now()

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expiry", "scope", "updated_at"}),
	}).Create(cred).Error
	if err != nil {
		return fmt.Errorf("save credential for user %s: %w", cred.UserID, err)
	}
	return nil
}

func (r *credentialRepository) Find(userID, provider string) (*domain.OAuthCredential, error) {
	var cred domain.OAuthCredential
	if err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find credential for user %s: %w", userID, err)
	}
	return &cred, nil
}

func (r *credentialRepository) Delete(userID, provider string) error {
	if err := r.db.Where("user_id = ? AND provider = ?", userID, provider).Delete(&domain.OAuthCredential{}).Error; err != nil {
		return fmt.Errorf("delete credential for user %s: %w", userID, err)
	}
	return nil
}

func (r *credentialRepository) ListOwners(provider string) ([]string, error) {
	var owners []string
	if err := r.db.Model(&domain.OAuthCredential{}).Where("provider = ?", provider).Order("user_id").Pluck("user_id", &owners).Error; err != nil {
		return nil, fmt.Errorf("list connected owners: %w", err)
	}
	return owners, nil
}
