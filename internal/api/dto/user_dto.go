package dto

import (
	"time"

	"github.com/spec-kit/quickdesk/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Username string `json:"username" validate:"max=64"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

// UserLoginRequest payload for login. Handle is a username or an email.
type UserLoginRequest struct {
	Handle   string `json:"handle" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// NewUserResponses maps a list of users.
func NewUserResponses(users []domain.User) []UserResponse {
	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, NewUserResponse(&users[i]))
	}
	return resp
}
