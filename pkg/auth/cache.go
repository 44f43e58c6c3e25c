package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// CacheConfig — configuration for the three-tier token cache
// ---------------------------------------------------------------------------

// CacheConfig holds the per-tier TTL and capacity configuration for
// [TokenCache]. Each tier is bounded and expires entries independently; the
// effective TTL of any entry is additionally capped by the remaining
// lifetime of the token it was derived from.
type CacheConfig struct {
	// ValidationTTL is the maximum time a verification result is cached.
	// Defaults to 5 minutes.
	// Environment variable: GUILDHALL_AUTH_CACHE_VALIDATION_TTL
	ValidationTTL time.Duration `json:"validation_ttl" yaml:"validation_ttl" env:"GUILDHALL_AUTH_CACHE_VALIDATION_TTL" envDefault:"5m"`

	// ValidationMaxSize is the maximum number of entries in the validation
	// tier. Defaults to 10000.
	// Environment variable: GUILDHALL_AUTH_CACHE_VALIDATION_MAX_SIZE
	ValidationMaxSize int `json:"validation_max_size" yaml:"validation_max_size" env:"GUILDHALL_AUTH_CACHE_VALIDATION_MAX_SIZE" envDefault:"10000"`

	// ClaimsTTL is the maximum time decoded claims are cached.
	// Defaults to 5 minutes.
	// Environment variable: GUILDHALL_AUTH_CACHE_CLAIMS_TTL
	ClaimsTTL time.Duration `json:"claims_ttl" yaml:"claims_ttl" env:"GUILDHALL_AUTH_CACHE_CLAIMS_TTL" envDefault:"5m"`

	// ClaimsMaxSize is the maximum number of entries in the claims tier.
	// Defaults to 10000.
	// Environment variable: GUILDHALL_AUTH_CACHE_CLAIMS_MAX_SIZE
	ClaimsMaxSize int `json:"claims_max_size" yaml:"claims_max_size" env:"GUILDHALL_AUTH_CACHE_CLAIMS_MAX_SIZE" envDefault:"10000"`

	// UserDetailsTTL is the maximum time derived user details are cached.
	// Defaults to 5 minutes.
	// Environment variable: GUILDHALL_AUTH_CACHE_USER_DETAILS_TTL
	UserDetailsTTL time.Duration `json:"user_details_ttl" yaml:"user_details_ttl" env:"GUILDHALL_AUTH_CACHE_USER_DETAILS_TTL" envDefault:"5m"`

	// UserDetailsMaxSize is the maximum number of entries in the user
	// details tier. Defaults to 10000.
	// Environment variable: GUILDHALL_AUTH_CACHE_USER_DETAILS_MAX_SIZE
	UserDetailsMaxSize int `json:"user_details_max_size" yaml:"user_details_max_size" env:"GUILDHALL_AUTH_CACHE_USER_DETAILS_MAX_SIZE" envDefault:"10000"`
}

// DefaultCacheConfig returns a CacheConfig with default TTLs and capacities.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ValidationTTL:      5 * time.Minute,
		ValidationMaxSize:  10000,
		ClaimsTTL:          5 * time.Minute,
		ClaimsMaxSize:      10000,
		UserDetailsTTL:     5 * time.Minute,
		UserDetailsMaxSize: 10000,
	}
}

// Validate checks the configuration and returns a *[gherr.Error] with code
// [gherr.CodeValidation] if any TTL is negative or any capacity is not
// positive.
func (c *CacheConfig) Validate() error {
	if c.ValidationTTL < 0 || c.ClaimsTTL < 0 || c.UserDetailsTTL < 0 {
		return gherr.New(gherr.CodeValidation, "auth: cache TTLs must be non-negative")
	}
	if c.ValidationMaxSize <= 0 || c.ClaimsMaxSize <= 0 || c.UserDetailsMaxSize <= 0 {
		return gherr.New(gherr.CodeValidation, "auth: cache max sizes must be greater than zero")
	}
	return nil
}

// ---------------------------------------------------------------------------
// cacheTier — one bounded TTL map shared by all three tiers
// ---------------------------------------------------------------------------

// tierEntry stores a cached value and its expiration time.
type tierEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// cacheTier is a bounded in-memory TTL cache. All three [TokenCache] tiers
// are instances of this type with different value types. Entries past their
// expiration are treated as misses on read; capacity pressure evicts expired
// entries first, then the entry closest to expiry.
//
// cacheTier is safe for concurrent use. Hit and miss counters are atomic so
// [TokenCache.Stats] never contends with the hot path.
type cacheTier[V any] struct {
	mu      sync.RWMutex
	entries map[string]*tierEntry[V]
	maxSize int
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// newCacheTier creates a tier with the given TTL and maximum entry count.
func newCacheTier[V any](ttl time.Duration, maxSize int) *cacheTier[V] {
	return &cacheTier[V]{
		entries: make(map[string]*tierEntry[V]),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// get retrieves a cached value by key. Returns the value and true if the
// entry exists and has not expired; expired entries count as misses.
func (t *cacheTier[V]) get(key string) (V, bool) {
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		t.misses.Add(1)
		var zero V
		return zero, false
	}
	t.hits.Add(1)
	return entry.value, true
}

// put stores a value in the tier. The effective TTL is the minimum of the
// tier's TTL and the time remaining until notAfter (typically the source
// token's expiry); a zero notAfter means the tier TTL applies alone. Values
// whose effective TTL is not positive are not stored. If the tier is at
// capacity, expired entries are evicted first; if still at capacity, the
// entry closest to expiry is removed.
func (t *cacheTier[V]) put(key string, value V, notAfter time.Time) {
	ttl := t.ttl
	if !notAfter.IsZero() {
		remaining := time.Until(notAfter)
		if remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return // Source token already expired; do not cache.
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.maxSize {
		t.evictExpiredLocked(time.Now())
	}
	if len(t.entries) >= t.maxSize {
		// Evict the entry closest to expiry.
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range t.entries {
			if first || v.expiresAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.expiresAt
				first = false
			}
		}
		if oldestKey != "" {
			delete(t.entries, oldestKey)
		}
	}

	t.entries[key] = &tierEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// delete removes the entry for key, if present.
func (t *cacheTier[V]) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// purge removes all entries from the tier.
func (t *cacheTier[V]) purge() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*tierEntry[V])
}

// size returns the current entry count, including not-yet-evicted expired
// entries.
func (t *cacheTier[V]) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// evictExpired removes all expired entries and returns the number removed.
func (t *cacheTier[V]) evictExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictExpiredLocked(now)
}

// evictExpiredLocked removes all expired entries. Caller must hold the
// write lock.
func (t *cacheTier[V]) evictExpiredLocked(now time.Time) int {
	removed := 0
	for k, v := range t.entries {
		if now.After(v.expiresAt) {
			delete(t.entries, k)
			removed++
		}
	}
	return removed
}

// stats returns a snapshot of the tier's counters and size.
func (t *cacheTier[V]) stats() TierStats {
	return TierStats{
		Hits:   t.hits.Load(),
		Misses: t.misses.Load(),
		Size:   t.size(),
	}
}

// ---------------------------------------------------------------------------
// Stats types
// ---------------------------------------------------------------------------

// TierStats is a point-in-time snapshot of one cache tier's counters.
type TierStats struct {
	// Hits is the number of lookups that returned a live entry.
	Hits int64 `json:"hits"`

	// Misses is the number of lookups that found no entry or an expired one.
	Misses int64 `json:"misses"`

	// Size is the current entry count.
	Size int `json:"size"`
}

// HitRate returns the fraction of lookups that were hits, or 0 if the tier
// has never been queried.
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheStats is a point-in-time snapshot of all three token cache tiers.
type CacheStats struct {
	Validation  TierStats `json:"validation"`
	Claims      TierStats `json:"claims"`
	UserDetails TierStats `json:"user_details"`
}

// ---------------------------------------------------------------------------
// TokenCache — the three-tier cache
// ---------------------------------------------------------------------------

// TokenCache caches the products of token verification in three independent
// tiers: the boolean verification verdict, the decoded [Claims], and the
// derived [UserDetails]. All tiers are keyed by the hex SHA-256 digest of
// the token string (see [TokenCache.Key]), so raw tokens never appear as
// map keys in memory.
//
// TokenCache is safe for concurrent use by multiple goroutines. Concurrent
// stores for the same key are last-write-wins; callers tolerate duplicate
// recomputation rather than serialize verification.
type TokenCache struct {
	validation  *cacheTier[bool]
	claims      *cacheTier[*Claims]
	userDetails *cacheTier[*UserDetails]
}

// NewTokenCache creates a TokenCache with the given per-tier configuration.
// Returns an error with code [gherr.CodeValidation] if the configuration is
// invalid.
func NewTokenCache(cfg CacheConfig) (*TokenCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenCache{
		validation:  newCacheTier[bool](cfg.ValidationTTL, cfg.ValidationMaxSize),
		claims:      newCacheTier[*Claims](cfg.ClaimsTTL, cfg.ClaimsMaxSize),
		userDetails: newCacheTier[*UserDetails](cfg.UserDetailsTTL, cfg.UserDetailsMaxSize),
	}, nil
}

// Key derives the cache key for a token string: the hex-encoded SHA-256
// digest of the token. Using a digest keeps raw credentials out of cache
// memory and gives every tier a fixed-size key.
func (c *TokenCache) Key(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// LookupValidation returns the cached verification verdict for key.
// The second return reports whether a live entry was present.
func (c *TokenCache) LookupValidation(key string) (bool, bool) {
	return c.validation.get(key)
}

// StoreValidation caches a verification verdict. notAfter caps the entry's
// lifetime at the source token's expiry; pass the zero time for verdicts
// with no token expiry to bound them by (e.g., definitive signature
// failures).
func (c *TokenCache) StoreValidation(key string, valid bool, notAfter time.Time) {
	c.validation.put(key, valid, notAfter)
}

// LookupClaims returns the cached decoded claims for key. Entries whose
// source token has expired are reported as misses even if the cache entry
// itself is still live.
func (c *TokenCache) LookupClaims(key string) (*Claims, bool) {
	claims, ok := c.claims.get(key)
	if !ok {
		return nil, false
	}
	if claims.Expired(time.Now()) {
		c.claims.delete(key)
		return nil, false
	}
	return claims, true
}

// StoreClaims caches decoded claims, bounded by the claims' own expiry.
func (c *TokenCache) StoreClaims(key string, claims *Claims) {
	if claims == nil {
		return
	}
	c.claims.put(key, claims, claims.ExpiresAt)
}

// LookupUserDetails returns the cached user details for key. Details whose
// source token has expired are reported as misses even if the cache entry
// itself is still live.
func (c *TokenCache) LookupUserDetails(key string) (*UserDetails, bool) {
	details, ok := c.userDetails.get(key)
	if !ok {
		return nil, false
	}
	if !details.Valid() {
		c.userDetails.delete(key)
		return nil, false
	}
	return details, true
}

// StoreUserDetails caches derived user details, bounded by the details'
// own expiry.
func (c *TokenCache) StoreUserDetails(key string, details *UserDetails) {
	if details == nil {
		return
	}
	c.userDetails.put(key, details, details.ExpiresAt)
}

// Invalidate removes the entries for key from all three tiers. Use this to
// force re-verification of a specific token (e.g., after a role change).
func (c *TokenCache) Invalidate(key string) {
	c.validation.delete(key)
	c.claims.delete(key)
	c.userDetails.delete(key)
}

// InvalidateAll removes all entries from all three tiers.
func (c *TokenCache) InvalidateAll() {
	c.validation.purge()
	c.claims.purge()
	c.userDetails.purge()
}

// EvictExpired removes expired entries from all tiers and returns the total
// number removed. The authenticator's sweep goroutine calls this
// periodically so idle tokens do not pin memory until capacity pressure.
func (c *TokenCache) EvictExpired(now time.Time) int {
	removed := c.validation.evictExpired(now)
	removed += c.claims.evictExpired(now)
	removed += c.userDetails.evictExpired(now)
	return removed
}

// Stats returns a snapshot of hit/miss counters and sizes for all tiers.
func (c *TokenCache) Stats() CacheStats {
	return CacheStats{
		Validation:  c.validation.stats(),
		Claims:      c.claims.stats(),
		UserDetails: c.userDetails.stats(),
	}
}
