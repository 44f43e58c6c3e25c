// Package errors provides standardized error types and error handling
// utilities for the guildhall auth core. It defines the error categories the
// token lifecycle produces, machine-readable codes, and helper functions for
// creating, wrapping, and inspecting errors.
//
// # Error Categories
//
//   - Validation errors: invalid configuration, missing required fields
//   - Authentication errors: malformed, expired, or forged tokens, replayed
//     refresh tokens
//   - Internal errors: unexpected system failures
//   - Unavailable errors: a dependency (e.g., Redis) cannot be reached
//   - Timeout errors: an operation exceeded its time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_004") used for
// logging, metrics, and alerting. Codes follow the pattern CATEGORY_XXX where
// CATEGORY is a short identifier and XXX is a numeric code. Authentication
// codes deliberately distinguish why a token was rejected (signature,
// structure, expiry, type, replay) even though callers treat every rejection
// uniformly as "no identity established".
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeAuthTokenExpired, "access token has expired")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeInternal, "failed to sweep replay guard")
//
// Check error category:
//
//	if errors.IsAuthentication(err) {
//	    // proceed unauthenticated
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Warn("authentication failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
