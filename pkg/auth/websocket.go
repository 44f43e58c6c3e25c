package auth

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsTokenQueryParam is the query parameter fallback for clients (notably
// browsers) that cannot set an Authorization header on a WebSocket
// handshake request.
const wsTokenQueryParam = "access_token"

// WebSocketUpgrader authenticates WebSocket handshake requests before
// upgrading them. The token is taken from the Authorization header or, as a
// browser fallback, from the "access_token" query parameter. A request
// without a valid access token is rejected with HTTP 401 and never
// upgraded; the rejection affects only that connection attempt.
//
// WebSocketUpgrader is safe for concurrent use.
type WebSocketUpgrader struct {
	authn    *Authenticator
	upgrader websocket.Upgrader
}

// NewWebSocketUpgrader creates a WebSocketUpgrader bound to the given
// authenticator. checkOrigin controls cross-origin handshake acceptance; if
// nil, gorilla/websocket's default same-origin policy applies.
func NewWebSocketUpgrader(authn *Authenticator, checkOrigin func(r *http.Request) bool) *WebSocketUpgrader {
	return &WebSocketUpgrader{
		authn: authn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Upgrade authenticates the handshake request and upgrades it to a
// WebSocket connection. On success it returns the connection and the
// authenticated user. On authentication failure it writes HTTP 401 to the
// response and returns the authentication error; the connection is never
// upgraded.
//
// The caller owns the returned connection and must close it.
func (u *WebSocketUpgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, *UserDetails, error) {
	ctx := r.Context()

	token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
	if token == "" {
		token = r.URL.Query().Get(wsTokenQueryParam)
	}

	user, err := u.authn.Authenticate(ctx, token)
	if err != nil {
		slog.DebugContext(ctx, "auth: websocket handshake rejected",
			"error", err,
			"remote", r.RemoteAddr,
		)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil, nil, err
	}

	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error response.
		return nil, nil, err
	}

	return conn, user, nil
}
