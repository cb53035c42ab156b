package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	_, err := Require(ctx)
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, ok = FromContext(WithTenantID(ctx, ""))
	assert.False(t, ok, "empty tenant ids are treated as missing")

	scoped := WithTenantID(ctx, "acme")
	id, err := Require(scoped)
	assert.NoError(t, err)
	assert.Equal(t, "acme", id)
}
