package auth

import (
	"time"
)

// ---------------------------------------------------------------------------
// UserDetails — the identity snapshot handed to request handlers
// ---------------------------------------------------------------------------

// UserDetails is an immutable snapshot of an authenticated member, derived
// entirely from a verified access token. It carries everything a request
// handler needs without a profile store lookup.
//
// UserDetails values are never updated in place: a newer token produces a
// new snapshot that replaces the cached one. Callers must not mutate a
// UserDetails obtained from [Authenticator.Authenticate] or from the cache.
type UserDetails struct {
	// UserID is the stable member identifier (the token's sub claim).
	UserID string `json:"user_id"`

	// Roles are the member's normalized membership roles.
	Roles []Role `json:"roles"`

	// Username is the member's display name at token mint time. May be
	// empty when the token did not carry it.
	Username string `json:"username,omitempty"`

	// Avatar is the member's avatar reference at token mint time. May be
	// empty when the token did not carry it.
	Avatar string `json:"avatar,omitempty"`

	// Credits is the member's community-currency balance snapshot at token
	// mint time.
	Credits int64 `json:"credits"`

	// ExpiresAt is the source token's expiry. Validity of the snapshot is
	// tied to the token, not to cache residency.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewUserDetails derives a UserDetails snapshot from verified claims.
func NewUserDetails(claims *Claims) *UserDetails {
	roles := make([]Role, len(claims.Roles))
	copy(roles, claims.Roles)
	return &UserDetails{
		UserID:    claims.Subject,
		Roles:     roles,
		Username:  claims.Username,
		Avatar:    claims.Avatar,
		Credits:   claims.Credits,
		ExpiresAt: claims.ExpiresAt,
	}
}

// Valid reports whether the snapshot's source token is still within its
// lifetime. A cached snapshot whose token has expired is invalid regardless
// of cache TTLs.
func (u *UserDetails) Valid() bool {
	return u.ExpiresAt.After(time.Now())
}

// HasRole reports whether the member holds the given role.
func (u *UserDetails) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
