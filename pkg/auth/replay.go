package auth

import (
	"context"
	"sync"
	"time"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// ReplayGuard — single-use tracking for refresh token identifiers
// ---------------------------------------------------------------------------

// ReplayGuard records spent refresh-token identifiers (jti claims) so each
// refresh token can be exchanged exactly once. Identifiers only need to be
// remembered until their token expires; after that, verification rejects the
// token on its exp claim alone.
//
// An empty identifier is always treated as already spent (fail closed): a
// token without a jti can never win an exchange.
//
// Implementations must be safe for concurrent use. [MemoryReplayGuard]
// serves a single process; [RedisReplayGuard] coordinates across instances.
type ReplayGuard interface {
	// MarkUsed records the identifier as spent until expiresAt. Marking an
	// already-spent identifier is a no-op, not an error.
	MarkUsed(ctx context.Context, jti string, expiresAt time.Time) error

	// IsUsed reports whether the identifier has been spent.
	IsUsed(ctx context.Context, jti string) (bool, error)

	// Consume atomically checks and marks the identifier in one critical
	// section. Returns true if the identifier was fresh and this call spent
	// it, false if it was already spent. Exactly one concurrent caller for
	// the same identifier observes true.
	Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	// Sweep removes identifiers whose tokens expired before now and
	// returns the number removed. Implementations with self-expiring
	// storage may make this a no-op.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Close releases any resources held by the guard.
	Close() error
}

// ---------------------------------------------------------------------------
// MemoryReplayGuard — process-local guard
// ---------------------------------------------------------------------------

// MemoryReplayGuard tracks spent identifiers in a mutex-guarded map from
// jti to token expiry. It is the default guard for single-instance
// deployments; the [Authenticator]'s sweep goroutine calls [MemoryReplayGuard.Sweep]
// periodically to drop entries for expired tokens.
type MemoryReplayGuard struct {
	mu    sync.Mutex
	spent map[string]time.Time
}

// Compile-time assertion that MemoryReplayGuard implements ReplayGuard.
var _ ReplayGuard = (*MemoryReplayGuard)(nil)

// NewMemoryReplayGuard creates an empty in-memory replay guard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		spent: make(map[string]time.Time),
	}
}

// MarkUsed records the identifier as spent until expiresAt. An empty
// identifier is rejected with a [gherr.CodeValidation] error because it can
// never be meaningfully spent.
func (g *MemoryReplayGuard) MarkUsed(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return gherr.New(gherr.CodeValidation, "auth: replay guard identifier must not be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spent[jti] = expiresAt
	return nil
}

// IsUsed reports whether the identifier has been spent. An empty identifier
// is reported as spent (fail closed).
func (g *MemoryReplayGuard) IsUsed(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return true, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, used := g.spent[jti]
	return used, nil
}

// Consume atomically checks and marks the identifier. The check and the
// mark happen under one lock acquisition, so exactly one concurrent caller
// for the same identifier observes fresh=true. An empty identifier is never
// fresh.
func (g *MemoryReplayGuard) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if jti == "" {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, used := g.spent[jti]; used {
		return false, nil
	}
	g.spent[jti] = expiresAt
	return true, nil
}

// Sweep removes identifiers whose token expiry passed before now and
// returns the number removed. Keeping an identifier past its token's expiry
// is harmless (verification rejects the token anyway), so sweeping is a
// memory bound, not a correctness requirement.
func (g *MemoryReplayGuard) Sweep(ctx context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for jti, expiresAt := range g.spent {
		if now.After(expiresAt) {
			delete(g.spent, jti)
			removed++
		}
	}
	return removed, nil
}

// Close releases the guard's state. The guard must not be used after Close.
func (g *MemoryReplayGuard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spent = make(map[string]time.Time)
	return nil
}

// Len returns the current number of tracked identifiers.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.spent)
}
