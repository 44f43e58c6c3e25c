package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL, INT) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Machine-readable: Suitable for automated error handling and metrics
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when configuration or input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Each code identifies why a token was rejected. Callers treat every
	// AUTH error identically ("no identity established"); the specific
	// code exists for logging and metrics only.

	// CodeAuthentication indicates a general authentication failure not
	// covered by a more specific code.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthTokenExpired indicates the token's signature verified but
	// its exp claim has passed.
	CodeAuthTokenExpired Code = "AUTH_002"

	// CodeAuthTokenMalformed indicates a structurally invalid token:
	// not three segments, or undecodable.
	CodeAuthTokenMalformed Code = "AUTH_003"

	// CodeAuthInvalidSignature indicates the token's signature does not
	// verify under the secret for the expected token type.
	CodeAuthInvalidSignature Code = "AUTH_004"

	// CodeAuthUnsupportedFormat indicates a decodable token using an
	// unexpected algorithm or structure (e.g., alg "none" or RS256 where
	// HS512 is required).
	CodeAuthUnsupportedFormat Code = "AUTH_005"

	// CodeAuthEmptyToken indicates no token was presented.
	CodeAuthEmptyToken Code = "AUTH_006"

	// CodeAuthWrongTokenType indicates a refresh token was presented
	// where an access token was expected, or vice versa.
	CodeAuthWrongTokenType Code = "AUTH_007"

	// CodeAuthReplayedRefreshToken indicates a refresh token whose jti
	// has already been spent.
	CodeAuthReplayedRefreshToken Code = "AUTH_008"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalStore indicates a cache or store operation failed.
	CodeInternalStore Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error. At
	// startup these are fatal; they must never be downgraded to a warning.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Used when a dependency is temporarily unavailable.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service (e.g., the
	// Redis replay store) is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutStore indicates a store operation timed out.
	CodeTimeoutStore Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
