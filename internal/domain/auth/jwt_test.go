package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "gamestore/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.GenerateAccessToken(appctx.UserContext{
		UserID:     "u-7",
		CustomerID: 7,
		Roles:      []string{appctx.RoleCustomer},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-7", user.UserID)
	assert.Equal(t, int64(7), user.CustomerID)
	assert.False(t, user.IsAdmin)

	actor := user.Actor()
	assert.True(t, actor.Owns(7))
	assert.False(t, actor.Owns(8))
}

func TestJWTService_AdminRole(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, _, err := svc.GenerateAccessToken(appctx.UserContext{
		UserID: "staff",
		Roles:  []string{appctx.RoleAdmin},
	})
	require.NoError(t, err)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.True(t, user.Actor().Owns(12345))
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	other := NewJWTService(DefaultJWTConfig("another-secret"))

	foreign, _, err := other.GenerateAccessToken(appctx.UserContext{UserID: "x"})
	require.NoError(t, err)

	expiredCfg := DefaultJWTConfig("secret")
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, _, err := NewJWTService(expiredCfg).GenerateAccessToken(appctx.UserContext{UserID: "x"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  foreign,
		"expired token": expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
