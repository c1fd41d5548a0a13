package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-admin-console/internal/apierr"
	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/resource"
)

// UserService manages console accounts.
type UserService struct {
	Cache  Cache
	Writes Mutator
}

// List returns one page of users.
func (s *UserService) List(ctx context.Context, page, perPage int) (*Page[domain.User], error) {
	page, perPage = normalizePaging(page, perPage)
	d, err := resource.NewDescriptor(domain.ResourceUsers, nil, page, perPage)
	if err != nil {
		return nil, err
	}
	return listPage[domain.User](ctx, s.Cache, d)
}

// Get returns user id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return getOne[domain.User](ctx, s.Cache, domain.ResourceUsers, id)
}

// Create creates a user. A password is mandatory.
func (s *UserService) Create(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	in = normalizeUser(in)
	if in.Password == "" {
		return nil, &mutation.Error{
			ResourceType: domain.ResourceUsers,
			Op:           mutation.OpCreate,
			Kind:         apierr.KindValidation,
			Err:          apierr.Validation("users.create", ErrPasswordRequired.Error()),
		}
	}
	out, err := s.Writes.Mutate(ctx, mutation.Create(domain.ResourceUsers, in))
	if err != nil {
		return nil, err
	}
	return decodeRecord[domain.User](out)
}

// Update changes user id. A blank password is left out of the request so
// the stored password stays unchanged.
func (s *UserService) Update(ctx context.Context, id int64, in domain.UserInput) (*domain.User, error) {
	in = normalizeUser(in)
	var omit []string
	if in.Password == "" {
		omit = append(omit, "password")
	}
	out, err := s.Writes.Mutate(ctx, mutation.Update(domain.ResourceUsers, id, in, omit...))
	if err != nil {
		return nil, err
	}
	return decodeRecord[domain.User](out)
}

// Delete removes user id.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	_, err := s.Writes.Mutate(ctx, mutation.Delete(domain.ResourceUsers, id))
	return err
}

func normalizeUser(in domain.UserInput) domain.UserInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	return in
}
