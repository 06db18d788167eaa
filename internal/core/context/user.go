// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"

	"gamestore/internal/core/entity"
)

// Roles recognised by the HTTP layer.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// UserContext contains authenticated caller information taken from the token.
// Handlers convert it into an explicit entity.Actor before calling the core.
type UserContext struct {
	UserID     string
	CustomerID int64
	Email      string
	Roles      []string
	IsAdmin    bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// Actor converts the token identity into the explicit caller passed to core
// operations.
func (u *UserContext) Actor() entity.Actor {
	return entity.Actor{
		UserID:     u.UserID,
		CustomerID: u.CustomerID,
		Admin:      u.IsAdmin,
	}
}
