package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/cache"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// CategoryService manages the category registry.
type CategoryService struct {
	categories repository.CategoryRepository
	cache      cache.CategoryCache
	logger     *zap.Logger
}

// NewCategoryService constructs the service. categoryCache may be nil.
func NewCategoryService(categories repository.CategoryRepository, categoryCache cache.CategoryCache, logger *zap.Logger) *CategoryService {
	return &CategoryService{categories: categories, cache: categoryCache, logger: orNop(logger)}
}

// List returns every category ordered by name. Cache failures degrade to a
// database read.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	cacheUsable := s.cache != nil
	var generation int64
	if cacheUsable {
		cached, gen, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.Warn("category cache read failed", zap.Error(err))
			cacheUsable = false
		case ok:
			return cached, nil
		}
		generation = gen
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	if cacheUsable {
		if err := s.cache.Set(ctx, generation, categories); err != nil {
			s.logger.Warn("category cache write failed", zap.Error(err))
		}
	}
	return categories, nil
}

// Create adds a uniquely named category.
func (s *CategoryService) Create(ctx context.Context, actor *domain.User, name string) (*domain.Category, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionManageCategories, nil); err != nil {
		return nil, err
	}
	return s.create(ctx, name)
}

func (s *CategoryService) create(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewEmptyInput("name")
	}
	category := &domain.Category{ID: uuid.NewString(), Name: name}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateName("category", name)
		}
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx)
	s.logger.Info("category created", zap.String("category_id", category.ID), zap.String("name", name))
	return category, nil
}

// Delete removes a category no ticket references.
func (s *CategoryService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := auth.Check(actor, domain.ActionManageCategories, nil); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return apperrors.NewNotFound("category", map[string]any{"category_id": id})
		case errors.Is(err, repository.ErrReferenced):
			return apperrors.NewReferentialIntegrity("category is referenced by existing tickets",
				map[string]any{"category_id": id})
		}
		return apperrors.MapError(err)
	}
	s.invalidate(ctx)
	s.logger.Info("category deleted", zap.String("category_id", id))
	return nil
}

// EnsureDefaults seeds names into an empty registry.
func (s *CategoryService) EnsureDefaults(ctx context.Context, names []string) (int, error) {
	existing, err := s.categories.List(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	created := 0
	for _, name := range names {
		if _, err := s.create(ctx, name); err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeDuplicateName {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *CategoryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("category cache invalidation failed", zap.Error(err))
	}
}
