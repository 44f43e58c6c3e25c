package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// HeaderAuthorization is the HTTP header carrying the bearer token.
const HeaderAuthorization = "Authorization"

// bearerPrefix is the expected scheme prefix of the Authorization header
// value. Matching is case-insensitive per RFC 7235.
const bearerPrefix = "bearer "

// ExtractBearerToken extracts the token from an Authorization header value
// of the form "Bearer <token>". Returns an empty string when the value is
// empty or uses a different scheme.
func ExtractBearerToken(headerValue string) string {
	if len(headerValue) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(headerValue[len(bearerPrefix):])
}

// HTTPMiddleware returns an HTTP middleware that authenticates incoming
// requests against the given [Authenticator].
//
// The middleware performs the following steps:
//  1. Extracts the "Authorization" header (bearer token)
//  2. Authenticates the token
//  3. Stores the resulting [*UserDetails] in the request context
//  4. Passes the request to the next handler
//
// A missing or invalid token does NOT reject the request: the request
// proceeds without a user in its context, and handlers that require an
// identity enforce it via [RequireAuth]. This keeps public endpoints and
// authenticated endpoints behind one middleware chain.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/profile", auth.RequireAuth(http.HandlerFunc(handleProfile)))
//	mux.HandleFunc("/api/public", handlePublic)
//	handler := auth.HTTPMiddleware(authn)(mux)
//	http.ListenAndServe(":8080", handler)
func HTTPMiddleware(authn *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token != "" {
				user, err := authn.Authenticate(ctx, token)
				if err != nil {
					// Proceed unauthenticated; RequireAuth decides whether
					// the route needs an identity.
					slog.DebugContext(ctx, "auth: request token rejected",
						"error", err,
						"path", r.URL.Path,
					)
				} else {
					ctx = ContextWithUser(ctx, user)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth wraps a handler so that requests without an authenticated
// user in their context are rejected with HTTP 401 Unauthorized. It must
// run behind [HTTPMiddleware], which populates the context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole wraps a handler so that requests from users without the given
// role are rejected with HTTP 403 Forbidden, and unauthenticated requests
// with HTTP 401. It must run behind [HTTPMiddleware].
func RequireRole(role Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if !user.HasRole(role) {
			http.Error(w, "insufficient role", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
