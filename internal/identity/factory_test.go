package identity

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-codereview-backend/internal/config"
)

func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	p, closer, err := FromConfig(ctx, config.IdentityConfig{Provider: "local", JWTSecret: testSecret, BcryptCost: 4}, db)
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)
	assert.IsType(t, &MemoryRevocations{}, p.(*LocalProvider).revoked)
	assert.NoError(t, closer())

	mr := miniredis.RunT(t)
	p, closer, err = FromConfig(ctx, config.IdentityConfig{Provider: "local", JWTSecret: testSecret, RedisURL: mr.Addr()}, db)
	require.NoError(t, err)
	assert.IsType(t, &RedisRevocations{}, p.(*LocalProvider).revoked)
	assert.NoError(t, closer())

	p, _, err = FromConfig(ctx, config.IdentityConfig{Provider: "remote", URL: "http://id.local", Key: "anon"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RemoteProvider{}, p)

	_, _, err = FromConfig(ctx, config.IdentityConfig{Provider: "ldap"}, db)
	assert.Error(t, err)

	_, _, err = FromConfig(ctx, config.IdentityConfig{Provider: "local", JWTSecret: "short"}, db)
	assert.Error(t, err)
}
