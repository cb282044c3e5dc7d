package usecase

import (
	"errors"

	authdomain "taskflow-backend/internal/auth/domain"
	authdto "taskflow-backend/internal/auth/dto"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
)

// AuthUsecase covers owner accounts, sessions and device registration
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*authdomain.User, error)

	GetProfile(userID string) (*authdomain.User, error)
	UpdateProfile(userID string, req *authdto.UpdateProfileRequest) (*authdomain.User, error)
	// RoleHint returns the owner's role used to bias research classification
	RoleHint(userID string) (string, error)

	RegisterDevice(userID, token, label string) error
	RemoveDevice(token string) error
}
