package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// UserService exposes account administration.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: orNop(logger)}
}

// ListUsers returns accounts ordered by username. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User, role string, limit, offset int) ([]domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	filter := repository.UserFilter{Limit: limit, Offset: offset}
	if role != "" && role != domain.FilterAll {
		r := domain.Role(role)
		if !r.Valid() {
			return nil, invalidRole(role)
		}
		filter.Roles = []domain.Role{r}
	}
	return s.list(ctx, filter)
}

// ListAgents returns every support agent and admin, for assignment pickers.
func (s *UserService) ListAgents(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionAssignTicket, nil); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.UserFilter{
		Roles: []domain.Role{domain.RoleSupportAgent, domain.RoleAdmin},
		Limit: 1000,
	})
}

// UpdateRole changes userID's role. Admin only.
func (s *UserService) UpdateRole(ctx context.Context, actor *domain.User, userID, role string) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	newRole := domain.Role(role)
	if !newRole.Valid() {
		return nil, invalidRole(role)
	}
	user, err := s.users.UpdateRole(ctx, userID, newRole)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"user_id": userID})
	}
	s.logger.Info("user role changed",
		zap.String("user_id", userID), zap.String("role", role), zap.String("admin_id", actor.ID))
	return user, nil
}

func (s *UserService) list(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func invalidRole(role string) error {
	return apperrors.NewValidationError("invalid role", map[string]any{"role": role, "allowed": domain.Roles})
}
