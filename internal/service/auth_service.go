package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenManager
	hasher      *auth.PasswordHasher
	revocations auth.RevocationStore
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Tokens      *auth.TokenManager
	Hasher      *auth.PasswordHasher
	Revocations auth.RevocationStore
	Logger      *zap.Logger
}

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Session is an authenticated user with a bearer token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		tokens:      deps.Tokens,
		hasher:      deps.Hasher,
		revocations: deps.Revocations,
		logger:      orNop(deps.Logger),
	}
}

// Register creates an end_user account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := s.CreateUser(ctx, input, domain.RoleEndUser)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateUser stores a new account with role. Registration always passes
// end_user; bootstrap seeding passes admin.
func (s *AuthService) CreateUser(ctx context.Context, input RegisterInput, role domain.Role) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	switch {
	case username == "":
		return nil, apperrors.NewEmptyInput("username")
	case email == "":
		return nil, apperrors.NewEmptyInput("email")
	case input.Password == "":
		return nil, apperrors.NewEmptyInput("password")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}
	if !role.Valid() {
		return nil, invalidRole(string(role))
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if strings.Contains(repository.Constraint(err), "email") {
				return nil, apperrors.NewDuplicateName("email", email)
			}
			return nil, apperrors.NewDuplicateName("username", username)
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Authenticate verifies handle (username or email) and secret. Unknown
// handles and wrong secrets fail identically.
func (s *AuthService) Authenticate(ctx context.Context, handle, secret string) (*Session, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || secret == "" {
		return nil, apperrors.NewAuthenticationFailed("invalid credentials")
	}

	user, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		s.hasher.Burn(secret)
		return nil, apperrors.NewAuthenticationFailed("invalid credentials")
	}
	if !s.hasher.Matches(user.PasswordHash, secret) {
		s.logger.Warn("login rejected", zap.String("user_id", user.ID))
		return nil, apperrors.NewAuthenticationFailed("invalid credentials")
	}
	return s.issue(user)
}

// Logout revokes the caller's token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil {
		return apperrors.NewAuthenticationFailed("authentication required")
	}
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, principal.TokenID, time.Until(principal.ExpiresAt)); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.logger.Info("token revoked", zap.String("user_id", principal.User.ID), zap.String("jti", principal.TokenID))
	return nil
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token.Token, ExpiresAt: token.ExpiresAt}, nil
}
