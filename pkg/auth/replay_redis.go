package auth

import (
	"context"
	"time"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"

	"github.com/guildhall/guildhall-auth/pkg/clients/redis"
)

// defaultReplayKeyPrefix namespaces replay-guard keys in Redis so they can
// coexist with other platform data in the same database.
const defaultReplayKeyPrefix = "guildhall:auth:replay:"

// ---------------------------------------------------------------------------
// RedisReplayGuard — distributed guard for multi-instance deployments
// ---------------------------------------------------------------------------

// RedisReplayGuard tracks spent refresh-token identifiers in Redis so that a
// refresh token exchanged on one application instance is rejected on every
// other instance.
//
// Atomicity of [RedisReplayGuard.Consume] comes from SET NX: the first
// caller to set the key wins, every later caller observes it. Keys carry a
// TTL matching the token's remaining lifetime, so Redis expires them itself
// and [RedisReplayGuard.Sweep] is a no-op.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

// Compile-time assertion that RedisReplayGuard implements ReplayGuard.
var _ ReplayGuard = (*RedisReplayGuard)(nil)

// NewRedisReplayGuard creates a replay guard backed by the given Redis
// client. If prefix is empty, [defaultReplayKeyPrefix] is used. The guard
// does not own the client; closing the guard does not close the client.
func NewRedisReplayGuard(client *redis.Client, prefix string) (*RedisReplayGuard, error) {
	if client == nil {
		return nil, gherr.New(gherr.CodeValidation, "auth: redis replay guard requires a client")
	}
	if prefix == "" {
		prefix = defaultReplayKeyPrefix
	}
	return &RedisReplayGuard{
		client: client,
		prefix: prefix,
	}, nil
}

// key namespaces an identifier under the guard's prefix.
func (g *RedisReplayGuard) key(jti string) string {
	return g.prefix + jti
}

// MarkUsed records the identifier as spent until expiresAt. An empty
// identifier is rejected with a [gherr.CodeValidation] error. Identifiers
// whose expiry has already passed are not written: verification rejects the
// expired token regardless, and a non-positive TTL would persist the key
// forever.
func (g *RedisReplayGuard) MarkUsed(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return gherr.New(gherr.CodeValidation, "auth: replay guard identifier must not be empty")
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return g.client.Set(ctx, g.key(jti), "1", ttl)
}

// IsUsed reports whether the identifier has been spent. An empty identifier
// is reported as spent (fail closed).
func (g *RedisReplayGuard) IsUsed(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return true, nil
	}
	n, err := g.client.Exists(ctx, g.key(jti))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Consume atomically checks and marks the identifier via SET NX. The first
// caller across all application instances sets the key and observes
// fresh=true; every later caller observes fresh=false. An empty identifier
// or an already-expired token is never fresh.
func (g *RedisReplayGuard) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, nil
	}
	return g.client.SetNX(ctx, g.key(jti), "1", ttl)
}

// Sweep is a no-op: Redis expires replay keys itself via their TTL.
func (g *RedisReplayGuard) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Close releases the guard. The underlying Redis client is shared and is
// not closed here; its owner must close it separately.
func (g *RedisReplayGuard) Close() error {
	return nil
}
