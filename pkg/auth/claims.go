package auth

import (
	"time"
)

// ---------------------------------------------------------------------------
// TokenType — distinguishes access tokens from refresh tokens
// ---------------------------------------------------------------------------

// TokenType identifies the kind of a JWT minted by the [TokenCodec]. The
// type is embedded in the token's "type" claim, and each type is signed with
// its own secret, so the two kinds are never interchangeable: a refresh
// token cannot authenticate a request, and an access token cannot be
// exchanged for a new pair.
type TokenType string

const (
	// TokenTypeAccess identifies short-lived tokens that authenticate
	// individual requests.
	TokenTypeAccess TokenType = "ACCESS"

	// TokenTypeRefresh identifies longer-lived, single-use tokens that are
	// exchanged for a fresh token pair.
	TokenTypeRefresh TokenType = "REFRESH"
)

// Valid reports whether the token type is one of the recognized kinds.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// String returns the string representation of the token type.
func (t TokenType) String() string {
	return string(t)
}

// Wire claim names. Registered JWT claims (sub, iat, exp, jti, iss) use
// their standard names; the remainder are private claims of the guildhall
// token format.
const (
	claimSubject  = "sub"
	claimIssuer   = "iss"
	claimIssuedAt = "iat"
	claimExpires  = "exp"
	claimTokenID  = "jti"
	claimType     = "type"
	claimRoles    = "roles"
	claimUsername = "username"
	claimAvatar   = "avatar"
	claimCredits  = "credits"
)

// ---------------------------------------------------------------------------
// Claims — decoded token payload
// ---------------------------------------------------------------------------

// Claims is the decoded payload of a verified token. It is produced only by
// [TokenCodec.VerifyAndDecode]; all projections (Subject, Roles, expiry) are
// pure reads of the already-verified payload and never trigger
// re-verification.
//
// Claims values are treated as immutable after decoding. The [TokenCache]
// stores them by pointer; callers must not mutate a Claims obtained from
// the cache.
type Claims struct {
	// Subject is the stable member identifier (the "sub" claim).
	Subject string

	// Type is the token kind (the "type" claim).
	Type TokenType

	// Roles are the normalized membership roles (the "roles" claim).
	Roles []Role

	// IssuedAt is the token's mint time (the "iat" claim).
	IssuedAt time.Time

	// ExpiresAt is the token's expiry (the "exp" claim).
	ExpiresAt time.Time

	// ID is the unique token identifier (the "jti" claim). For refresh
	// tokens this is the single-use identifier tracked by the replay guard.
	ID string

	// Username is the member's display name, carried on access tokens so
	// request handlers can render it without a profile lookup. Empty when
	// the token does not carry it.
	Username string

	// Avatar is the member's avatar reference. Empty when the token does
	// not carry it.
	Avatar string

	// Credits is the member's community-currency balance snapshot at mint
	// time. Zero when the token does not carry it.
	Credits int64

	// custom holds any remaining private claims not projected into the
	// fields above.
	custom map[string]any
}

// CustomClaim returns the value of a private claim that is not projected
// into a dedicated field. Returns the value and true if the claim is
// present, or nil and false otherwise.
func (c *Claims) CustomClaim(key string) (any, bool) {
	v, ok := c.custom[key]
	return v, ok
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expired reports whether the token's expiry has passed at the given time.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
