package remote

import (
	"fmt"
	"strconv"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// Route locates one resource type on the remote API.
type Route struct {
	// Collection is the base path; items live at Collection/{id}.
	Collection string
	// List overrides the list path when it differs from Collection.
	List string
	// Flat marks list endpoints that return a bare array instead of a
	// paginated {items,total,per_page,current_page} object.
	Flat bool
}

// Routes maps resource types to remote paths.
type Routes map[string]Route

// DefaultRoutes is the content API layout.
func DefaultRoutes() Routes {
	return Routes{
		domain.ResourceArticles:   {Collection: "/ms-content/article"},
		domain.ResourceCategories: {Collection: "/ms-content/category", List: "/ms-content/category/all", Flat: true},
		domain.ResourceUsers:      {Collection: "/ms-user/user"},
	}
}

// Auth endpoints.
const (
	PathLogin = "/ms-user/auth/login"
	PathMe    = "/ms-user/user/me"
)

func (r Routes) lookup(resourceType string) (Route, error) {
	rt, ok := r[resourceType]
	if !ok {
		return Route{}, fmt.Errorf("unknown resource type %q", resourceType)
	}
	return rt, nil
}

// CollectionPath returns the create path for resourceType.
func (r Routes) CollectionPath(resourceType string) (string, error) {
	rt, err := r.lookup(resourceType)
	if err != nil {
		return "", err
	}
	return rt.Collection, nil
}

// ItemPath returns the path of record id.
func (r Routes) ItemPath(resourceType string, id int64) (string, error) {
	rt, err := r.lookup(resourceType)
	if err != nil {
		return "", err
	}
	return rt.Collection + "/" + strconv.FormatInt(id, 10), nil
}

// ListPath returns the list path for resourceType.
func (r Routes) ListPath(resourceType string) (string, error) {
	rt, err := r.lookup(resourceType)
	if err != nil {
		return "", err
	}
	if rt.List != "" {
		return rt.List, nil
	}
	return rt.Collection, nil
}
