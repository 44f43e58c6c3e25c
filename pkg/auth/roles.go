package auth

import (
	"context"
	"log/slog"
	"strings"
)

// ---------------------------------------------------------------------------
// Role — community membership levels carried in token claims
// ---------------------------------------------------------------------------

// Role identifies a membership level within the community. Roles are carried
// in the "roles" claim of access and refresh tokens and drive authorization
// decisions at the request boundary.
type Role string

const (
	// RoleUser is the baseline role granted to every authenticated member.
	RoleUser Role = "USER"

	// RoleModerator grants moderation capabilities (content removal,
	// member timeouts).
	RoleModerator Role = "MODERATOR"

	// RoleAdmin grants full administrative control over the community.
	RoleAdmin Role = "ADMIN"

	// RoleBot identifies automated accounts acting on behalf of the
	// platform's integration bots.
	RoleBot Role = "BOT"
)

// legacyRolePrefix is the prefix older token issuers attached to role names
// (e.g., "ROLE_ADMIN"). Tokens carrying prefixed names are still in
// circulation and must keep authenticating until they expire, so role
// decoding strips the prefix before matching.
const legacyRolePrefix = "ROLE_"

// Valid reports whether the role is one of the recognized membership levels.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin, RoleBot:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// NormalizeRole converts a role name from a token claim to a [Role].
// Matching is case-insensitive and tolerates the legacy "ROLE_" prefix, so
// "admin", "ADMIN", and "ROLE_ADMIN" all normalize to [RoleAdmin]. Returns
// the role and true on a match, or an empty role and false for unrecognized
// names.
func NormalizeRole(name string) (Role, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.TrimPrefix(normalized, legacyRolePrefix)
	role := Role(normalized)
	if role.Valid() {
		return role, true
	}
	return "", false
}

// normalizeRoles converts a slice of role names from token claims to a
// slice of recognized [Role] values. Unrecognized names are dropped with a
// warning rather than failing the whole token: a token minted by a newer
// issuer with an unknown role must still authenticate with the roles this
// version understands.
func normalizeRoles(ctx context.Context, logger *slog.Logger, names []string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		role, ok := NormalizeRole(name)
		if !ok {
			logger.WarnContext(ctx, "auth: dropping unrecognized role from token claims",
				"role", name,
			)
			continue
		}
		roles = append(roles, role)
	}
	return roles
}

// RoleNames converts a slice of roles to their string names for inclusion
// in token claims.
func RoleNames(roles []Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}
