package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/resource"
)

// CategoryService manages categories. The remote API lists every category at
// once; pages are cut locally.
type CategoryService struct {
	Cache  Cache
	Writes Mutator
}

// List returns one page of categories.
func (s *CategoryService) List(ctx context.Context, page, perPage int) (*Page[domain.Category], error) {
	page, perPage = normalizePaging(page, perPage)
	d, err := resource.NewDescriptor(domain.ResourceCategories, nil, page, perPage)
	if err != nil {
		return nil, err
	}
	return listPage[domain.Category](ctx, s.Cache, d)
}

// Get returns category id.
func (s *CategoryService) Get(ctx context.Context, id int64) (*domain.Category, error) {
	return getOne[domain.Category](ctx, s.Cache, domain.ResourceCategories, id)
}

// Create creates a category.
func (s *CategoryService) Create(ctx context.Context, in domain.CategoryInput) (*domain.Category, error) {
	out, err := s.Writes.Mutate(ctx, mutation.Create(domain.ResourceCategories, normalizeCategory(in)))
	if err != nil {
		return nil, err
	}
	return decodeRecord[domain.Category](out)
}

// Update replaces the editable fields of category id.
func (s *CategoryService) Update(ctx context.Context, id int64, in domain.CategoryInput) (*domain.Category, error) {
	out, err := s.Writes.Mutate(ctx, mutation.Update(domain.ResourceCategories, id, normalizeCategory(in)))
	if err != nil {
		return nil, err
	}
	return decodeRecord[domain.Category](out)
}

// Delete removes category id.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	_, err := s.Writes.Mutate(ctx, mutation.Delete(domain.ResourceCategories, id))
	return err
}

func normalizeCategory(in domain.CategoryInput) domain.CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	return in
}
