// Package tenant carries the tenant identifier resolved by authentication
// through request and job contexts.
package tenant

import (
	"context"
	"errors"
)

var ErrMissingTenant = errors.New("tenant: no tenant in context")

type ctxKey struct{}

// WithTenantID returns a copy of ctx scoped to the given tenant.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// FromContext returns the tenant stored on ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Require is FromContext for callers that cannot proceed without a tenant.
func Require(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrMissingTenant
	}
	return id, nil
}
