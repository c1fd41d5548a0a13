package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/resource"
)

// Stats are the dashboard totals.
type Stats struct {
	Articles   int64 `json:"articles"   yaml:"articles"`
	Categories int64 `json:"categories" yaml:"categories"`
	Users      int64 `json:"users"      yaml:"users"`
}

// DashboardService computes dashboard totals.
type DashboardService struct {
	Cache Cache
}

// Stats reads the first one-record page of every resource type concurrently
// and reports the totals. Users are counted only when includeUsers is set.
func (s *DashboardService) Stats(ctx context.Context, includeUsers bool) (Stats, error) {
	ctx, span := tracer.Start(ctx, "dashboard.stats")
	defer span.End()

	var st Stats
	g, gctx := errgroup.WithContext(ctx)

	count := func(rt string, dst *int64) {
		g.Go(func() error {
			d, err := resource.NewDescriptor(rt, nil, 1, 1)
			if err != nil {
				return err
			}
			p, err := listPage[struct{}](gctx, s.Cache, d)
			if err != nil {
				return err
			}
			*dst = p.Total
			return nil
		})
	}
	count(domain.ResourceArticles, &st.Articles)
	count(domain.ResourceCategories, &st.Categories)
	if includeUsers {
		count(domain.ResourceUsers, &st.Users)
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return st, nil
}
