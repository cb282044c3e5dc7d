package dto

import authdomain "taskflow-backend/internal/auth/domain"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest patches the profile; nil fields are left alone.
// Role is a free-form hint such as "sales" that tunes task classification.
type UpdateProfileRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
	Label string `json:"device_info"`
}

// TokenResponse is returned by register, login and refresh.
// ExpiresIn is the access token lifetime in seconds.
type TokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	User         *authdomain.User `json:"user"`
}
