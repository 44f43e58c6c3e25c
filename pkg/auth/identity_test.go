package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserDetails_CopiesClaims(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour)
	claims := &Claims{
		Subject:   "member-42",
		Type:      TokenTypeAccess,
		Roles:     []Role{RoleUser, RoleModerator},
		IssuedAt:  time.Now(),
		ExpiresAt: exp,
		ID:        "jti-1",
		Username:  "hexjelly",
		Avatar:    "a_8f2c",
		Credits:   500,
	}

	details := NewUserDetails(claims)
	require.NotNil(t, details)
	assert.Equal(t, "member-42", details.UserID)
	assert.Equal(t, "hexjelly", details.Username)
	assert.Equal(t, "a_8f2c", details.Avatar)
	assert.Equal(t, int64(500), details.Credits)
	assert.Equal(t, exp, details.ExpiresAt)

	// The snapshot owns its role slice.
	claims.Roles[0] = RoleBot
	assert.Equal(t, RoleUser, details.Roles[0], "mutating the claims must not affect the snapshot")
}

func TestUserDetails_Valid(t *testing.T) {
	t.Parallel()

	live := &UserDetails{ExpiresAt: time.Now().Add(time.Hour)}
	assert.True(t, live.Valid())

	expired := &UserDetails{ExpiresAt: time.Now().Add(-time.Second)}
	assert.False(t, expired.Valid())
}

func TestUserDetails_HasRole(t *testing.T) {
	t.Parallel()

	details := &UserDetails{Roles: []Role{RoleUser, RoleAdmin}}
	assert.True(t, details.HasRole(RoleUser))
	assert.True(t, details.HasRole(RoleAdmin))
	assert.False(t, details.HasRole(RoleModerator))

	var empty UserDetails
	assert.False(t, empty.HasRole(RoleUser))
}
