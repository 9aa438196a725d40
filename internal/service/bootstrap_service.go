package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/config"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// Bootstrap seeds first-start data: an admin account and the default
// categories. Both steps are idempotent.
type Bootstrap struct {
	cfg        config.SeedConfig
	users      repository.UserRepository
	auth       *AuthService
	categories *CategoryService
	logger     *zap.Logger
}

// NewBootstrap wires the seeder.
func NewBootstrap(cfg config.SeedConfig, users repository.UserRepository, authService *AuthService, categories *CategoryService, logger *zap.Logger) *Bootstrap {
	return &Bootstrap{cfg: cfg, users: users, auth: authService, categories: categories, logger: orNop(logger)}
}

// Run applies every seed step.
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.seedAdmin(ctx); err != nil {
		return err
	}
	if !b.cfg.DefaultCategories {
		return nil
	}
	created, err := b.categories.EnsureDefaults(ctx, domain.DefaultCategories)
	if err != nil {
		return err
	}
	if created > 0 {
		b.logger.Info("default categories seeded", zap.Int("count", created))
	}
	return nil
}

func (b *Bootstrap) seedAdmin(ctx context.Context) error {
	if b.cfg.AdminPassword == "" {
		b.logger.Debug("admin seeding skipped, no password configured")
		return nil
	}
	if _, err := b.users.GetByUsername(ctx, b.cfg.AdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}

	admin, err := b.auth.CreateUser(ctx, RegisterInput{
		Username: b.cfg.AdminUsername,
		Email:    b.cfg.AdminEmail,
		Password: b.cfg.AdminPassword,
	}, domain.RoleAdmin)
	if err != nil {
		return err
	}
	b.logger.Info("admin account seeded", zap.String("user_id", admin.ID), zap.String("username", admin.Username))
	return nil
}
