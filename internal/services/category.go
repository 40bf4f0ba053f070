package services

import (
	"context"
	"strings"

	"github.com/newsdesk/apiserver/types"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	Get(ctx context.Context, id int) (types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
	Delete(ctx context.Context, id int) error
}

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]types.Category, error) {
	return s.repo.List(ctx)
}

// Create stores a new category. The name is trimmed before the
// uniqueness check so " Tech " and "tech" collide.
func (s *CategoryService) Create(ctx context.Context, category types.Category) (types.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	category.Description = strings.TrimSpace(category.Description)
	if category.Name == "" {
		return types.Category{}, &ValidationError{Errors: []string{"name is required"}}
	}
	return s.repo.Create(ctx, category)
}

func (s *CategoryService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// Names returns the set of existing category names, lowercased, as a
// one-shot snapshot. Validators compare against this snapshot instead
// of querying per field, so concurrent category edits cannot change the
// outcome mid-request.
func (s *CategoryService) Names(ctx context.Context) (map[string]bool, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(categories))
	for _, category := range categories {
		names[strings.ToLower(category.Name)] = true
	}
	return names, nil
}
