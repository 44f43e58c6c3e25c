// Package auth provides the JWT authentication and caching core for the
// guildhall platform: token issuance and verification with dual
// access/refresh secrets, a three-tier in-memory token cache, a single-use
// refresh-token replay guard, and request-boundary adapters for HTTP,
// WebSocket, and gRPC.
//
// # Architecture
//
// The package is organized around four collaborating components:
//
//   - [TokenCodec] signs and verifies HS512 JWTs. Access and refresh tokens
//     use independent secrets, so one token kind can never verify under the
//     other kind's key.
//   - [TokenCache] holds three bounded TTL tiers (validation results,
//     decoded claims, derived user details) keyed by a SHA-256 digest of
//     the token string, so raw tokens are never held as map keys.
//   - [ReplayGuard] records spent refresh-token identifiers so each refresh
//     token can be exchanged exactly once. [MemoryReplayGuard] serves a
//     single process; [RedisReplayGuard] serves multi-instance deployments.
//   - [Authenticator] orchestrates the three and owns the background sweep
//     goroutine via an explicit Start/Stop lifecycle.
//
// # Usage
//
//	codec, err := auth.NewTokenCodec(codecCfg, logger)
//	cache, err := auth.NewTokenCache(cacheCfg)
//	guard := auth.NewMemoryReplayGuard()
//	authn, err := auth.NewAuthenticator(codec, cache, guard, authCfg, logger)
//	if err := authn.Start(ctx); err != nil { ... }
//	defer authn.Stop(context.Background())
//
//	user, err := authn.Authenticate(ctx, tokenString)
package auth

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(), and
// MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., passing to a cryptographic function).
type Secret string

// secretRedacted is the placeholder text shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required
// (e.g., passing to a cryptographic signing or verification function).
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }
