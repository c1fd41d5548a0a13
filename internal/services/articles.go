package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/resource"
)

// ArticleFilter narrows the article list. Zero values are not sent.
type ArticleFilter struct {
	Keyword    string
	CategoryID int64
	Status     string
	Page       int
	PerPage    int
}

// Descriptor converts the filter into a cache descriptor.
func (f ArticleFilter) Descriptor() (resource.Descriptor, error) {
	filters := map[string]any{}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		filters["keyword"] = kw
	}
	if f.CategoryID < 0 {
		return resource.Descriptor{}, fmt.Errorf("%w: category_id must be positive", ErrInvalidFilter)
	}
	if f.CategoryID > 0 {
		filters["category_id"] = f.CategoryID
	}
	switch f.Status {
	case "":
	case domain.ArticleDraft, domain.ArticlePublished, domain.ArticleArchived:
		filters["status"] = f.Status
	default:
		return resource.Descriptor{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	page, size := normalizePaging(f.Page, f.PerPage)
	return resource.NewDescriptor(domain.ResourceArticles, filters, page, size)
}

// ArticleService manages articles.
type ArticleService struct {
	Cache  Cache
	Writes Mutator
}

// List returns one page of articles in server order.
func (s *ArticleService) List(ctx context.Context, f ArticleFilter) (*Page[domain.Article], error) {
	d, err := f.Descriptor()
	if err != nil {
		return nil, err
	}
	return listPage[domain.Article](ctx, s.Cache, d)
}

// Get returns article id.
func (s *ArticleService) Get(ctx context.Context, id int64) (*domain.Article, error) {
	return getOne[domain.Article](ctx, s.Cache, domain.ResourceArticles, id)
}

// Create creates an article and returns the stored record.
func (s *ArticleService) Create(ctx context.Context, in domain.ArticleInput) (*domain.Article, error) {
	out, err := s.Writes.Mutate(ctx, mutation.Create(domain.ResourceArticles, trimArticle(in)))
	if err != nil {
		return nil, err
	}
	return decodeRecord[domain.Article](out)
}

// Update replaces the editable fields of article id.
func (s *ArticleService) Update(ctx context.Context, id int64, in domain.ArticleInput) (*domain.Article, error) {
	out, err := s.Writes.Mutate(ctx, mutation.Update(domain.ResourceArticles, id, trimArticle(in)))
	if err != nil {
		return nil, err
	}
	return decodeRecord[domain.Article](out)
}

// Delete removes article id.
func (s *ArticleService) Delete(ctx context.Context, id int64) error {
	_, err := s.Writes.Mutate(ctx, mutation.Delete(domain.ResourceArticles, id))
	return err
}

func trimArticle(in domain.ArticleInput) domain.ArticleInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	return in
}
