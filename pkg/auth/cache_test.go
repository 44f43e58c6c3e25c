package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestCache creates a TokenCache with small capacities so eviction paths
// are reachable without thousands of entries.
func newTestCache(t *testing.T) *TokenCache {
	t.Helper()
	cache, err := NewTokenCache(CacheConfig{
		ValidationTTL:      time.Minute,
		ValidationMaxSize:  4,
		ClaimsTTL:          time.Minute,
		ClaimsMaxSize:      4,
		UserDetailsTTL:     time.Minute,
		UserDetailsMaxSize: 4,
	})
	require.NoError(t, err)
	return cache
}

// testClaims returns claims for a token expiring at exp.
func testClaims(subject string, exp time.Time) *Claims {
	return &Claims{
		Subject:   subject,
		Type:      TokenTypeAccess,
		Roles:     []Role{RoleUser},
		IssuedAt:  time.Now(),
		ExpiresAt: exp,
		ID:        "jti-" + subject,
	}
}

// ---------------------------------------------------------------------------
// Config validation
// ---------------------------------------------------------------------------

func TestCacheConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := DefaultCacheConfig()
	assert.NoError(t, valid.Validate())

	negTTL := DefaultCacheConfig()
	negTTL.ClaimsTTL = -time.Second
	err := negTTL.Validate()
	require.Error(t, err)
	assert.True(t, gherr.HasCode(err, gherr.CodeValidation))

	zeroSize := DefaultCacheConfig()
	zeroSize.UserDetailsMaxSize = 0
	err = zeroSize.Validate()
	require.Error(t, err)
	assert.True(t, gherr.HasCode(err, gherr.CodeValidation))
}

// ---------------------------------------------------------------------------
// Key derivation
// ---------------------------------------------------------------------------

func TestTokenCache_Key_IsSHA256Digest(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)

	key := cache.Key("some.token.value")
	assert.Len(t, key, 64, "key must be a hex-encoded SHA-256 digest")
	assert.NotContains(t, key, "some.token.value")
	assert.Equal(t, key, cache.Key("some.token.value"), "keys must be deterministic")
	assert.NotEqual(t, key, cache.Key("some.token.valuf"))
}

// ---------------------------------------------------------------------------
// Tier behavior
// ---------------------------------------------------------------------------

func TestTokenCache_Validation_StoreAndLookup(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")

	_, ok := cache.LookupValidation(key)
	assert.False(t, ok, "lookup before store must miss")

	cache.StoreValidation(key, false, time.Time{})
	valid, ok := cache.LookupValidation(key)
	require.True(t, ok)
	assert.False(t, valid)
}

func TestTokenCache_Claims_ExpiredTokenIsMiss(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")

	// Claims whose token expires almost immediately: the entry may land in
	// the tier, but the lookup must treat the expired token as a miss.
	claims := testClaims("member-1", time.Now().Add(10*time.Millisecond))
	cache.StoreClaims(key, claims)

	time.Sleep(20 * time.Millisecond)
	_, ok := cache.LookupClaims(key)
	assert.False(t, ok, "claims for an expired token must not be served")
}

func TestTokenCache_Claims_LiveTokenIsHit(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")

	claims := testClaims("member-1", time.Now().Add(time.Hour))
	cache.StoreClaims(key, claims)

	got, ok := cache.LookupClaims(key)
	require.True(t, ok)
	assert.Equal(t, "member-1", got.Subject)
}

func TestTokenCache_UserDetails_ExpiredSnapshotIsMiss(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")

	details := NewUserDetails(testClaims("member-1", time.Now().Add(10*time.Millisecond)))
	cache.StoreUserDetails(key, details)

	time.Sleep(20 * time.Millisecond)
	_, ok := cache.LookupUserDetails(key)
	assert.False(t, ok)
}

func TestTokenCache_ExpiredSourceToken_NotStored(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")

	claims := testClaims("member-1", time.Now().Add(-time.Minute))
	cache.StoreClaims(key, claims)

	assert.Equal(t, 0, cache.Stats().Claims.Size, "already-expired tokens must not be cached")
}

func TestTokenCache_CapacityEviction(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)

	// Fill past the tier capacity of 4.
	for i := 0; i < 6; i++ {
		key := cache.Key(fmt.Sprintf("token-%d", i))
		cache.StoreClaims(key, testClaims(fmt.Sprintf("member-%d", i), time.Now().Add(time.Hour)))
	}

	assert.LessOrEqual(t, cache.Stats().Claims.Size, 4, "tier must stay within capacity")
}

// ---------------------------------------------------------------------------
// Invalidation
// ---------------------------------------------------------------------------

func TestTokenCache_Invalidate_RemovesAllTiers(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")
	exp := time.Now().Add(time.Hour)

	cache.StoreValidation(key, true, exp)
	cache.StoreClaims(key, testClaims("member-1", exp))
	cache.StoreUserDetails(key, NewUserDetails(testClaims("member-1", exp)))

	cache.Invalidate(key)

	_, ok := cache.LookupValidation(key)
	assert.False(t, ok)
	_, ok = cache.LookupClaims(key)
	assert.False(t, ok)
	_, ok = cache.LookupUserDetails(key)
	assert.False(t, ok)
}

func TestTokenCache_InvalidateAll(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	exp := time.Now().Add(time.Hour)

	for i := 0; i < 3; i++ {
		key := cache.Key(fmt.Sprintf("token-%d", i))
		cache.StoreClaims(key, testClaims("member", exp))
	}
	require.Equal(t, 3, cache.Stats().Claims.Size)

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Stats().Claims.Size)
}

// ---------------------------------------------------------------------------
// Sweep + stats
// ---------------------------------------------------------------------------

func TestTokenCache_EvictExpired(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)

	shortKey := cache.Key("short")
	longKey := cache.Key("long")
	cache.StoreClaims(shortKey, testClaims("member-1", time.Now().Add(10*time.Millisecond)))
	cache.StoreClaims(longKey, testClaims("member-2", time.Now().Add(time.Hour)))

	time.Sleep(20 * time.Millisecond)
	removed := cache.EvictExpired(time.Now())
	assert.Equal(t, 1, removed)

	_, ok := cache.LookupClaims(longKey)
	assert.True(t, ok, "live entries must survive the sweep")
}

func TestTokenCache_Stats_CountsHitsAndMisses(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := cache.Key("token-a")

	_, _ = cache.LookupClaims(key) // miss
	cache.StoreClaims(key, testClaims("member-1", time.Now().Add(time.Hour)))
	_, _ = cache.LookupClaims(key) // hit
	_, _ = cache.LookupClaims(key) // hit

	stats := cache.Stats().Claims
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 0.001)
}

func TestTierStats_HitRate_NoQueries(t *testing.T) {
	t.Parallel()
	assert.Zero(t, TierStats{}.HitRate())
}
