package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
	"ferremas/internal/services"
)

func newAuth(t *testing.T) (*services.AuthService, *repos.APIKeyRepo) {
	t.Helper()
	f := newFixture(t)
	keys := repos.NewAPIKeyRepo(f.db)
	auth := services.NewAuthService(keys)
	auth.Cost = bcrypt.MinCost
	return auth, keys
}

func TestAuthService_IssueAndAuthenticate(t *testing.T) {
	auth, keys := newAuth(t)
	ctx := context.Background()

	raw, k, err := auth.Issue(ctx, "u-ops", "bodega centro", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOperator, k.Role)
	assert.True(t, strings.HasPrefix(raw, k.ID+"."))
	assert.NotContains(t, k.Hash, strings.TrimPrefix(raw, k.ID+"."), "only the hash is stored")

	got, err := auth.Authenticate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "u-ops", got.UserID)

	stored, err := keys.ByID(ctx, k.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsed)

	for _, bad := range []string{"", "no-dot", k.ID + ".wrong", "ghost." + strings.TrimPrefix(raw, k.ID+".")} {
		_, err := auth.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, services.ErrBadKey, bad)
	}

	require.NoError(t, auth.Revoke(ctx, k.ID))
	_, err = auth.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, services.ErrBadKey)

	assert.ErrorIs(t, auth.Revoke(ctx, "ghost"), domain.ErrNotFound)
	ok, err := keys.Deactivate(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_EnsureBootstrap(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	require.NoError(t, auth.EnsureBootstrap(ctx, "boot.s3cret", "admin"))
	require.NoError(t, auth.EnsureBootstrap(ctx, "boot.s3cret", "admin"))

	k, err := auth.Authenticate(ctx, "boot.s3cret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, k.Role)

	assert.ErrorIs(t, auth.EnsureBootstrap(ctx, "missing-secret", "admin"), services.ErrBadKey)
}
