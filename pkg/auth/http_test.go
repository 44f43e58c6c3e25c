package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Bearer extraction
// ---------------------------------------------------------------------------

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "standard", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "mixed case scheme", header: "BeArEr abc.def.ghi", want: "abc.def.ghi"},
		{name: "surrounding whitespace", header: "Bearer   abc.def.ghi  ", want: "abc.def.ghi"},
		{name: "empty header", header: "", want: ""},
		{name: "scheme only", header: "Bearer ", want: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "no scheme", header: "abc.def.ghi", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// echoUserHandler writes the authenticated user ID, or "anonymous" when the
// request carries no identity.
func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := UserFromContext(r.Context()); ok {
			_, _ = w.Write([]byte(user.UserID))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func TestHTTPMiddleware_ValidTokenPopulatesContext(t *testing.T) {
	t.Parallel()
	authn, codec, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	token, err := codec.IssueAccessToken("member-42", []Role{RoleUser}, nil)
	require.NoError(t, err)

	handler := HTTPMiddleware(authn)(echoUserHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set(HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "member-42", rec.Body.String())
}

func TestHTTPMiddleware_MissingTokenProceedsUnauthenticated(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	handler := HTTPMiddleware(authn)(echoUserHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestHTTPMiddleware_InvalidTokenProceedsUnauthenticated(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	handler := HTTPMiddleware(authn)(echoUserHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
	req.Header.Set(HeaderAuthorization, "Bearer not-a-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code,
		"an invalid token must not reject the request at the middleware")
	assert.Equal(t, "anonymous", rec.Body.String())
}

// ---------------------------------------------------------------------------
// RequireAuth / RequireRole
// ---------------------------------------------------------------------------

func TestRequireAuth_RejectsAnonymous(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	handler := HTTPMiddleware(authn)(RequireAuth(echoUserHandler()))
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_PassesAuthenticated(t *testing.T) {
	t.Parallel()
	authn, codec, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	token, err := codec.IssueAccessToken("member-42", []Role{RoleUser}, nil)
	require.NoError(t, err)

	handler := HTTPMiddleware(authn)(RequireAuth(echoUserHandler()))
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set(HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "member-42", rec.Body.String())
}

func TestRequireRole_RejectsMissingRole(t *testing.T) {
	t.Parallel()
	authn, codec, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	token, err := codec.IssueAccessToken("member-42", []Role{RoleUser}, nil)
	require.NoError(t, err)

	handler := HTTPMiddleware(authn)(RequireRole(RoleAdmin, echoUserHandler()))
	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set(HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_RejectsAnonymousWith401(t *testing.T) {
	t.Parallel()
	authn, _, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	handler := HTTPMiddleware(authn)(RequireRole(RoleAdmin, echoUserHandler()))
	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code,
		"anonymous requests get 401, not 403")
}

func TestRequireRole_PassesWithRole(t *testing.T) {
	t.Parallel()
	authn, codec, _ := newTestAuthenticator(t, DefaultAuthenticatorConfig())

	token, err := codec.IssueAccessToken("member-42", []Role{RoleUser, RoleAdmin}, nil)
	require.NoError(t, err)

	handler := HTTPMiddleware(authn)(RequireRole(RoleAdmin, echoUserHandler()))
	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set(HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
