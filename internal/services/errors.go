// Package services implements the console's use cases on top of the resource
// cache and the mutation coordinator: articles, categories, users, operator
// authentication and the dashboard.
//
// This file centralizes service-level error values; translation into HTTP
// status codes and localized messages happens in the handler layer.
package services

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidFilter is returned for list filters the remote API would reject.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrUnauthenticated is returned when no operator is signed in.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrForbidden is returned when the operator's role may not use the console
	// (or the requested part of it).
	ErrForbidden = errors.New("forbidden")

	// ErrPasswordRequired is returned when creating a user without a password.
	ErrPasswordRequired = errors.New("password is required")
)
