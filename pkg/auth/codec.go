package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/guildhall/guildhall-auth/pkg/auth"

// maxTokenSize is the maximum accepted size for a JWT token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// signingAlgorithm is the only JWS algorithm the codec signs with and
// accepts. All other algorithms (including "none") are rejected as
// unsupported before signature verification.
const signingAlgorithm = "HS512"

// minSecretLen is the minimum accepted signing secret length in bytes.
// HS512 keys shorter than the hash output weaken the MAC, so 32 bytes is
// the floor.
const minSecretLen = 32

// ---------------------------------------------------------------------------
// CodecConfig — configuration for the token codec
// ---------------------------------------------------------------------------

// CodecConfig holds the configuration for [TokenCodec]. Access and refresh
// tokens are signed with independent secrets so that one token kind can
// never verify under the other kind's key.
//
// Configuration errors are fatal: [CodecConfig.Validate] failures surface at
// construction time and must abort startup rather than degrade to a warning.
type CodecConfig struct {
	// AccessSecret is the HMAC signing key for access tokens. Must be at
	// least 32 bytes and must differ from RefreshSecret.
	// Environment variable: GUILDHALL_AUTH_ACCESS_SECRET
	AccessSecret Secret `json:"-" yaml:"-" env:"GUILDHALL_AUTH_ACCESS_SECRET" required:"true"`

	// RefreshSecret is the HMAC signing key for refresh tokens. Must be at
	// least 32 bytes and must differ from AccessSecret.
	// Environment variable: GUILDHALL_AUTH_REFRESH_SECRET
	RefreshSecret Secret `json:"-" yaml:"-" env:"GUILDHALL_AUTH_REFRESH_SECRET" required:"true"`

	// AccessTTL is the lifetime of minted access tokens. Must be positive.
	// Defaults to 15 minutes.
	// Environment variable: GUILDHALL_AUTH_ACCESS_TTL
	AccessTTL time.Duration `json:"access_ttl" yaml:"access_ttl" env:"GUILDHALL_AUTH_ACCESS_TTL" envDefault:"15m"`

	// RefreshTTL is the lifetime of minted refresh tokens. Must be positive
	// and should exceed AccessTTL. Defaults to 7 days.
	// Environment variable: GUILDHALL_AUTH_REFRESH_TTL
	RefreshTTL time.Duration `json:"refresh_ttl" yaml:"refresh_ttl" env:"GUILDHALL_AUTH_REFRESH_TTL" envDefault:"168h"`

	// Issuer is the "iss" claim stamped on minted tokens and required on
	// verified ones. Defaults to "guildhall".
	// Environment variable: GUILDHALL_AUTH_ISSUER
	Issuer string `json:"issuer" yaml:"issuer" env:"GUILDHALL_AUTH_ISSUER" envDefault:"guildhall"`

	// ClockSkew is the maximum allowed clock difference between this
	// process and the token issuer. Tokens within this window of their
	// expiration are still considered valid. Must be non-negative.
	// Defaults to 30 seconds.
	// Environment variable: GUILDHALL_AUTH_CLOCK_SKEW
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"GUILDHALL_AUTH_CLOCK_SKEW" envDefault:"30s"`
}

// DefaultCodecConfig returns a CodecConfig with default TTLs, issuer, and
// clock skew. Secrets have no defaults and must be set by the caller before
// the config passes validation.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 168 * time.Hour,
		Issuer:     "guildhall",
		ClockSkew:  30 * time.Second,
	}
}

// Validate checks the configuration for logical correctness and returns a
// *[gherr.Error] with code [gherr.CodeValidation] if any field is invalid.
//
// Validation rules:
//   - AccessSecret and RefreshSecret must be at least 32 bytes
//   - AccessSecret and RefreshSecret must differ
//   - AccessTTL and RefreshTTL must be positive
//   - ClockSkew must be non-negative
func (c *CodecConfig) Validate() error {
	if len(strings.TrimSpace(c.AccessSecret.Value())) == 0 {
		return gherr.New(gherr.CodeValidation, "auth: access secret must not be blank")
	}
	if len(strings.TrimSpace(c.RefreshSecret.Value())) == 0 {
		return gherr.New(gherr.CodeValidation, "auth: refresh secret must not be blank")
	}
	if len(c.AccessSecret.Value()) < minSecretLen {
		return gherr.Newf(gherr.CodeValidation, "auth: access secret must be at least %d bytes", minSecretLen)
	}
	if len(c.RefreshSecret.Value()) < minSecretLen {
		return gherr.Newf(gherr.CodeValidation, "auth: refresh secret must be at least %d bytes", minSecretLen)
	}
	if c.AccessSecret.Value() == c.RefreshSecret.Value() {
		return gherr.New(gherr.CodeValidation, "auth: access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 {
		return gherr.New(gherr.CodeValidation, "auth: access token TTL must be positive")
	}
	if c.RefreshTTL <= 0 {
		return gherr.New(gherr.CodeValidation, "auth: refresh token TTL must be positive")
	}
	if c.ClockSkew < 0 {
		return gherr.New(gherr.CodeValidation, "auth: clock skew must be non-negative")
	}
	return nil
}

// ---------------------------------------------------------------------------
// TokenCodec — HS512 token issuance and verification
// ---------------------------------------------------------------------------

// TokenCodec signs and verifies guildhall JWTs using HS512 with dual
// secrets: one for access tokens, one for refresh tokens. It implements the
// [Codec] interface consumed by [Authenticator].
//
// TokenCodec is stateless apart from its configuration and is safe for
// concurrent use by multiple goroutines.
type TokenCodec struct {
	config CodecConfig
	logger *slog.Logger

	// now is the clock source, overridable in tests to mint tokens in the
	// past or future without sleeping.
	now func() time.Time
}

// Compile-time assertion that TokenCodec implements Codec.
var _ Codec = (*TokenCodec)(nil)

// NewTokenCodec creates a new TokenCodec with the given configuration. The
// configuration is validated before use; an error with code
// [gherr.CodeValidation] is returned if it is invalid. Configuration
// failures here are fatal by design and must abort startup.
//
// If logger is nil, [slog.Default] is used.
func NewTokenCodec(cfg CodecConfig, logger *slog.Logger) (*TokenCodec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenCodec{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// IssueAccessToken mints a new access token for the given subject and roles.
// customClaims are embedded as private claims alongside the standard set;
// reserved claim names (sub, iss, iat, exp, jti, type, roles) cannot be
// overridden and are silently skipped. The "username", "avatar", and
// "credits" keys project into the corresponding [Claims] fields on decode.
//
// Returns the compact JWS string, or a *[gherr.Error] with code
// [gherr.CodeInternal] if signing fails.
func (c *TokenCodec) IssueAccessToken(subject string, roles []Role, customClaims map[string]any) (string, error) {
	if subject == "" {
		return "", gherr.New(gherr.CodeValidation, "auth: token subject must not be empty")
	}
	return c.sign(subject, roles, customClaims, TokenTypeAccess, c.config.AccessTTL, c.config.AccessSecret)
}

// IssueRefreshToken mints a new refresh token for the given subject and
// roles. Refresh tokens carry only the standard claim set; the jti claim is
// the single-use identifier consumed by the replay guard on exchange.
func (c *TokenCodec) IssueRefreshToken(subject string, roles []Role) (string, error) {
	if subject == "" {
		return "", gherr.New(gherr.CodeValidation, "auth: token subject must not be empty")
	}
	return c.sign(subject, roles, nil, TokenTypeRefresh, c.config.RefreshTTL, c.config.RefreshSecret)
}

// sign builds the claim set and produces a signed compact JWS.
func (c *TokenCodec) sign(subject string, roles []Role, customClaims map[string]any, tokenType TokenType, ttl time.Duration, secret Secret) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		claimSubject:  subject,
		claimIssuer:   c.config.Issuer,
		claimIssuedAt: now.Unix(),
		claimExpires:  now.Add(ttl).Unix(),
		claimTokenID:  uuid.NewString(),
		claimType:     string(tokenType),
		claimRoles:    RoleNames(roles),
	}

	for k, v := range customClaims {
		if _, reserved := claims[k]; reserved {
			continue
		}
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret.Value()))
	if err != nil {
		return "", gherr.Wrap(err, gherr.CodeInternal, "auth: failed to sign token")
	}
	return signed, nil
}

// VerifyAndDecode verifies the given token string against the secret for the
// expected token type and returns its decoded claims.
//
// The method performs the following steps:
//  1. Rejects empty and oversized tokens
//  2. Inspects the unverified header and rejects any algorithm other than
//     HS512 (including "none") as unsupported
//  3. Verifies the signature, issuer, and time claims with the secret for
//     expectedType; jwt.WithValidMethods restricts accepted algorithms to
//     HS512 only, preventing algorithm confusion attacks
//  4. Rejects tokens whose "type" claim does not match expectedType
//  5. Projects the verified payload into a [Claims]
//
// Error codes returned:
//   - [gherr.CodeAuthEmptyToken]: no token presented
//   - [gherr.CodeAuthTokenMalformed]: structurally invalid token
//   - [gherr.CodeAuthUnsupportedFormat]: unexpected algorithm or structure
//   - [gherr.CodeAuthInvalidSignature]: signature does not verify
//   - [gherr.CodeAuthTokenExpired]: exp claim has passed
//   - [gherr.CodeAuthWrongTokenType]: type claim mismatch
func (c *TokenCodec) VerifyAndDecode(tokenString string, expectedType TokenType) (*Claims, error) {
	if tokenString == "" {
		return nil, gherr.New(gherr.CodeAuthEmptyToken, "auth: token must not be empty")
	}
	if len(tokenString) > maxTokenSize {
		return nil, gherr.New(gherr.CodeAuthTokenMalformed, "auth: token exceeds maximum size")
	}
	if !expectedType.Valid() {
		return nil, gherr.Newf(gherr.CodeValidation, "auth: unknown expected token type %q", expectedType)
	}

	// Inspect the unverified header first so algorithm substitution is
	// reported as an unsupported format rather than a signature failure.
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil || unverified == nil {
		return nil, gherr.Wrap(err, gherr.CodeAuthTokenMalformed, "auth: token is malformed")
	}
	algStr, _ := unverified.Header["alg"].(string)
	if !strings.EqualFold(algStr, signingAlgorithm) {
		return nil, gherr.Newf(gherr.CodeAuthUnsupportedFormat,
			"auth: algorithm %q is not permitted, only %s is accepted", algStr, signingAlgorithm)
	}

	secret := c.config.AccessSecret
	if expectedType == TokenTypeRefresh {
		secret = c.config.RefreshSecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret.Value()), nil
	},
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithLeeway(c.config.ClockSkew),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, gherr.New(gherr.CodeAuthTokenMalformed, "auth: unable to extract token claims")
	}

	typeStr, _ := mc[claimType].(string)
	if TokenType(typeStr) != expectedType {
		return nil, gherr.Newf(gherr.CodeAuthWrongTokenType,
			"auth: expected %s token, got %q", expectedType, typeStr)
	}

	return c.projectClaims(mc, expectedType)
}

// projectClaims converts verified jwt.MapClaims into the package's [Claims]
// type, normalizing roles leniently and splitting known private claims from
// the remainder.
func (c *TokenCodec) projectClaims(mc jwt.MapClaims, tokenType TokenType) (*Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, gherr.New(gherr.CodeAuthTokenMalformed, "auth: token is missing the sub claim")
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, gherr.New(gherr.CodeAuthTokenMalformed, "auth: token is missing the exp claim")
	}
	iat, err := mc.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, gherr.New(gherr.CodeAuthTokenMalformed, "auth: token is missing the iat claim")
	}

	claims := &Claims{
		Subject:   sub,
		Type:      tokenType,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}

	claims.ID, _ = mc[claimTokenID].(string)
	claims.Roles = normalizeRoles(context.Background(), c.logger, claimRoleNames(mc))
	claims.Username, _ = mc[claimUsername].(string)
	claims.Avatar, _ = mc[claimAvatar].(string)
	if credits, ok := mc[claimCredits].(float64); ok {
		claims.Credits = int64(credits)
	}

	// Collect remaining private claims.
	custom := make(map[string]any)
	for k, v := range mc {
		switch k {
		case claimSubject, claimIssuer, claimIssuedAt, claimExpires,
			claimTokenID, claimType, claimRoles,
			claimUsername, claimAvatar, claimCredits:
			continue
		}
		custom[k] = v
	}
	if len(custom) > 0 {
		claims.custom = custom
	}

	return claims, nil
}

// claimRoleNames extracts the raw role name strings from the "roles" claim.
// JSON decoding yields []any; non-string elements are skipped.
func claimRoleNames(mc jwt.MapClaims) []string {
	raw, ok := mc[claimRoles].([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

// classifyTokenError converts a JWT library error to an appropriate
// *[gherr.Error] with the correct error code. If the error is already a
// *gherr.Error, it is returned as-is.
func classifyTokenError(err error) *gherr.Error {
	if err == nil {
		return nil
	}

	var ghError *gherr.Error
	if errors.As(err, &ghError) {
		return ghError
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return gherr.Wrap(err, gherr.CodeAuthTokenExpired, "auth: token has expired")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return gherr.Wrap(err, gherr.CodeAuthTokenMalformed, "auth: token is malformed")
	}
	if errors.Is(err, jwt.ErrSignatureInvalid) || errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return gherr.Wrap(err, gherr.CodeAuthInvalidSignature, "auth: token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return gherr.Wrap(err, gherr.CodeAuthUnsupportedFormat, "auth: token is unverifiable")
	}
	if errors.Is(err, jwt.ErrTokenNotValidYet) || errors.Is(err, jwt.ErrTokenUsedBeforeIssued) {
		return gherr.Wrap(err, gherr.CodeAuthentication, "auth: token is not yet valid")
	}
	if errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		return gherr.Wrap(err, gherr.CodeAuthentication, "auth: token issuer is invalid")
	}
	if errors.Is(err, jwt.ErrTokenInvalidClaims) {
		return gherr.Wrap(err, gherr.CodeAuthentication, "auth: token claims are invalid")
	}

	return gherr.Wrap(err, gherr.CodeAuthentication, "auth: token verification failed")
}
