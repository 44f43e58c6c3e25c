package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
	"github.com/guildhall/guildhall-auth/pkg/lifecycle"
)

// ---------------------------------------------------------------------------
// Codec — the codec surface the facade depends on
// ---------------------------------------------------------------------------

// Codec is the token codec surface consumed by [Authenticator]. It is
// satisfied by [*TokenCodec] and by instrumented implementations in tests
// (e.g., wrappers counting verification calls to assert cache behavior).
type Codec interface {
	// IssueAccessToken mints a new access token.
	IssueAccessToken(subject string, roles []Role, customClaims map[string]any) (string, error)

	// IssueRefreshToken mints a new refresh token.
	IssueRefreshToken(subject string, roles []Role) (string, error)

	// VerifyAndDecode verifies a token against the secret for expectedType
	// and returns its decoded claims.
	VerifyAndDecode(tokenString string, expectedType TokenType) (*Claims, error)
}

// ---------------------------------------------------------------------------
// TokenPair — the product of a refresh exchange
// ---------------------------------------------------------------------------

// TokenPair is a freshly minted access/refresh token pair returned by
// [Authenticator.ExchangeRefreshToken].
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ---------------------------------------------------------------------------
// AuthenticatorConfig
// ---------------------------------------------------------------------------

// AuthenticatorConfig holds the configuration for [Authenticator].
type AuthenticatorConfig struct {
	// CachingEnabled controls whether verification results are cached.
	// When false every Authenticate call goes through the codec. Defaults
	// to true.
	// Environment variable: GUILDHALL_AUTH_CACHING_ENABLED
	CachingEnabled bool `json:"caching_enabled" yaml:"caching_enabled" env:"GUILDHALL_AUTH_CACHING_ENABLED" envDefault:"true"`

	// SweepInterval is how often the background sweep evicts expired cache
	// entries and spent replay identifiers. Must be positive. Defaults to
	// 1 minute.
	// Environment variable: GUILDHALL_AUTH_SWEEP_INTERVAL
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" env:"GUILDHALL_AUTH_SWEEP_INTERVAL" envDefault:"1m"`
}

// DefaultAuthenticatorConfig returns an AuthenticatorConfig with caching
// enabled and a 1-minute sweep interval.
func DefaultAuthenticatorConfig() AuthenticatorConfig {
	return AuthenticatorConfig{
		CachingEnabled: true,
		SweepInterval:  time.Minute,
	}
}

// Validate checks the configuration and returns a *[gherr.Error] with code
// [gherr.CodeValidation] if the sweep interval is not positive.
func (c *AuthenticatorConfig) Validate() error {
	if c.SweepInterval <= 0 {
		return gherr.New(gherr.CodeValidation, "auth: sweep interval must be positive")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Authenticator — the facade
// ---------------------------------------------------------------------------

// Authenticator orchestrates the token codec, the three-tier token cache,
// and the replay guard behind a single request-facing surface. Request
// boundaries (HTTP middleware, WebSocket handshakes, gRPC interceptors)
// depend only on this type.
//
// Authenticator has an explicit lifecycle: [Authenticator.Start] launches
// the background sweep goroutine and [Authenticator.Stop] cancels it. The
// authentication methods themselves work before Start; only the periodic
// maintenance requires the lifecycle.
//
// Authenticator is safe for concurrent use by multiple goroutines.
type Authenticator struct {
	codec  Codec
	cache  *TokenCache
	guard  ReplayGuard
	config AuthenticatorConfig
	logger *slog.Logger
	tracer trace.Tracer

	lc     *lifecycle.Guard
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAuthenticator creates an Authenticator from its collaborators. The
// cache may be nil only when cfg.CachingEnabled is false; codec and guard
// are always required. If logger is nil, [slog.Default] is used.
func NewAuthenticator(codec Codec, cache *TokenCache, guard ReplayGuard, cfg AuthenticatorConfig, logger *slog.Logger) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if codec == nil {
		return nil, gherr.New(gherr.CodeValidation, "auth: authenticator requires a codec")
	}
	if guard == nil {
		return nil, gherr.New(gherr.CodeValidation, "auth: authenticator requires a replay guard")
	}
	if cache == nil && cfg.CachingEnabled {
		return nil, gherr.New(gherr.CodeValidation, "auth: authenticator requires a cache when caching is enabled")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		codec:  codec,
		cache:  cache,
		guard:  guard,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		lc:     lifecycle.NewGuard(),
	}, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start transitions the authenticator to running and launches the
// background sweep goroutine. Returns a [gherr.CodeValidation] error if the
// authenticator is already running.
func (a *Authenticator) Start(ctx context.Context) error {
	if err := a.lc.Transition(lifecycle.StateStarting); err != nil {
		return err
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.sweepLoop(sweepCtx)

	if err := a.lc.Transition(lifecycle.StateRunning); err != nil {
		cancel()
		<-a.done
		return err
	}

	a.logger.InfoContext(ctx, "auth: authenticator started",
		"caching_enabled", a.config.CachingEnabled,
		"sweep_interval", a.config.SweepInterval,
	)
	return nil
}

// Stop cancels the sweep goroutine and waits for it to exit, bounded by the
// given context. Returns a [gherr.CodeValidation] error if the
// authenticator is not running, or a [gherr.CodeTimeout] error if the sweep
// goroutine does not exit before ctx is done.
func (a *Authenticator) Stop(ctx context.Context) error {
	if err := a.lc.Transition(lifecycle.StateStopping); err != nil {
		return err
	}

	a.cancel()
	select {
	case <-a.done:
	case <-ctx.Done():
		_ = a.lc.Transition(lifecycle.StateFailed)
		return gherr.Wrap(ctx.Err(), gherr.CodeTimeout, "auth: sweep goroutine did not stop in time")
	}

	if err := a.lc.Transition(lifecycle.StateStopped); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "auth: authenticator stopped")
	return nil
}

// State returns the authenticator's current lifecycle state.
func (a *Authenticator) State() lifecycle.State {
	return a.lc.State()
}

// sweepLoop periodically evicts expired cache entries and spent replay
// identifiers until its context is cancelled. Sweep failures are logged and
// never stop the loop.
func (a *Authenticator) sweepLoop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evicted := 0
			if a.cache != nil {
				evicted = a.cache.EvictExpired(now)
			}
			removed, err := a.guard.Sweep(ctx, now)
			if err != nil {
				a.logger.WarnContext(ctx, "auth: replay guard sweep failed",
					"error", err,
				)
				continue
			}
			if evicted > 0 || removed > 0 {
				a.logger.DebugContext(ctx, "auth: sweep completed",
					"cache_evicted", evicted,
					"replay_removed", removed,
				)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

// Authenticate verifies an access token and returns the member snapshot it
// represents.
//
// With caching enabled the method tries, in order:
//  1. The user-details tier — a hit returns without touching the codec.
//  2. The claims tier — a hit rebuilds the snapshot without verification.
//  3. The validation tier — a cached definitive rejection short-circuits.
//  4. The codec — full verification; success populates all three tiers.
//
// Failed verifications cache nothing, with one exception: an invalid
// signature is definitive for the token's lifetime (the signature can never
// become valid), so that verdict is stored in the validation tier.
//
// Returns a *[gherr.Error] with an AUTH_xxx code on rejection; callers
// treat every AUTH error as "no identity established".
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*UserDetails, error) {
	ctx, span := a.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	if tokenString == "" {
		err := gherr.New(gherr.CodeAuthEmptyToken, "auth: token must not be empty")
		recordSpanError(span, err)
		return nil, err
	}

	if !a.config.CachingEnabled {
		span.SetAttributes(attribute.Bool("auth.cache_enabled", false))
		return a.verifyAccess(ctx, span, tokenString, "")
	}

	key := a.cache.Key(tokenString)

	// Fast path: a live user-details snapshot needs no codec work at all.
	if details, ok := a.cache.LookupUserDetails(key); ok {
		span.SetAttributes(
			attribute.Bool("auth.cache_hit", true),
			attribute.String("auth.cache_tier", "user_details"),
		)
		return details, nil
	}

	// Claims path: rebuild the snapshot from cached verified claims.
	if claims, ok := a.cache.LookupClaims(key); ok {
		span.SetAttributes(
			attribute.Bool("auth.cache_hit", true),
			attribute.String("auth.cache_tier", "claims"),
		)
		details := NewUserDetails(claims)
		a.cache.StoreUserDetails(key, details)
		return details, nil
	}

	// Validation tier: a cached definitive rejection avoids re-verifying a
	// token that can never become valid.
	if valid, ok := a.cache.LookupValidation(key); ok && !valid {
		span.SetAttributes(
			attribute.Bool("auth.cache_hit", true),
			attribute.String("auth.cache_tier", "validation"),
		)
		err := gherr.New(gherr.CodeAuthInvalidSignature, "auth: token signature is invalid")
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("auth.cache_hit", false))
	return a.verifyAccess(ctx, span, tokenString, key)
}

// verifyAccess runs full codec verification for an access token and, when a
// cache key is provided, populates the cache tiers with the outcome.
func (a *Authenticator) verifyAccess(ctx context.Context, span trace.Span, tokenString, key string) (*UserDetails, error) {
	claims, err := a.codec.VerifyAndDecode(tokenString, TokenTypeAccess)
	if err != nil {
		// Only an invalid signature is definitive enough to cache: other
		// outcomes (expiry, clock skew) are time-dependent or transient.
		if key != "" && gherr.HasCode(err, gherr.CodeAuthInvalidSignature) {
			a.cache.StoreValidation(key, false, time.Time{})
		}
		recordSpanError(span, err)
		return nil, err
	}

	details := NewUserDetails(claims)
	if key != "" {
		a.cache.StoreValidation(key, true, claims.ExpiresAt)
		a.cache.StoreClaims(key, claims)
		a.cache.StoreUserDetails(key, details)
	}

	span.SetAttributes(attribute.String("auth.subject", claims.Subject))
	return details, nil
}

// ---------------------------------------------------------------------------
// Refresh exchange
// ---------------------------------------------------------------------------

// ExchangeRefreshToken verifies a refresh token, spends its identifier
// against the replay guard, and mints a fresh token pair. Each refresh
// token succeeds here at most once: the first exchange wins, every later
// attempt fails with [gherr.CodeAuthReplayedRefreshToken].
//
// The new pair carries the subject and roles of the presented refresh
// token; member profile claims (username, avatar, credits) are not carried
// over because refresh tokens do not hold them.
func (a *Authenticator) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := a.tracer.Start(ctx, "auth.ExchangeRefreshToken")
	defer span.End()

	if refreshToken == "" {
		err := gherr.New(gherr.CodeAuthEmptyToken, "auth: refresh token must not be empty")
		recordSpanError(span, err)
		return nil, err
	}

	claims, err := a.codec.VerifyAndDecode(refreshToken, TokenTypeRefresh)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	fresh, err := a.guard.Consume(ctx, claims.ID, claims.ExpiresAt)
	if err != nil {
		wrapped := gherr.Wrap(err, gherr.CodeInternalStore, "auth: replay guard consume failed")
		recordSpanError(span, wrapped)
		return nil, wrapped
	}
	if !fresh {
		err := gherr.New(gherr.CodeAuthReplayedRefreshToken, "auth: refresh token has already been used")
		a.logger.WarnContext(ctx, "auth: rejected replayed refresh token",
			"subject", claims.Subject,
			"jti", claims.ID,
		)
		recordSpanError(span, err)
		return nil, err
	}

	accessToken, err := a.codec.IssueAccessToken(claims.Subject, claims.Roles, nil)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	newRefreshToken, err := a.codec.IssueRefreshToken(claims.Subject, claims.Roles)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("auth.subject", claims.Subject))
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

// ---------------------------------------------------------------------------
// Cache and replay management
// ---------------------------------------------------------------------------

// InvalidateToken removes the given token's entries from every cache tier,
// forcing the next Authenticate to re-verify it. Use this when a member's
// roles change before their token expires.
func (a *Authenticator) InvalidateToken(ctx context.Context, tokenString string) {
	if a.cache == nil || tokenString == "" {
		return
	}
	a.cache.Invalidate(a.cache.Key(tokenString))
}

// InvalidateAllTokens clears every cache tier. All live tokens re-verify on
// their next use.
func (a *Authenticator) InvalidateAllTokens(ctx context.Context) {
	if a.cache == nil {
		return
	}
	a.cache.InvalidateAll()
}

// IsRefreshTokenSpent reports whether the refresh-token identifier has been
// consumed.
func (a *Authenticator) IsRefreshTokenSpent(ctx context.Context, jti string) (bool, error) {
	return a.guard.IsUsed(ctx, jti)
}

// MarkRefreshTokenSpent records a refresh-token identifier as consumed
// without an exchange, e.g. when a member logs out and their outstanding
// refresh token must stop working.
func (a *Authenticator) MarkRefreshTokenSpent(ctx context.Context, jti string, expiresAt time.Time) error {
	return a.guard.MarkUsed(ctx, jti, expiresAt)
}

// CacheStats returns a snapshot of the token cache counters, or the zero
// value when caching is disabled.
func (a *Authenticator) CacheStats() CacheStats {
	if a.cache == nil {
		return CacheStats{}
	}
	return a.cache.Stats()
}

// recordSpanError records an error on the span and sets its status.
func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
