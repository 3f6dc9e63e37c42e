package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bokzor/revenue-boost/pkg/logger"
)

type sessionContextKey struct{}

// SessionHeader is the header carrying the storefront visitor session token.
const SessionHeader = "X-Session-ID"

// Session holds the identity resolved for a storefront request.
type Session struct {
	SessionID string
	StoreID   string
}

// SessionValidator validates a raw session token and resolves the visitor
// session and merchant store it belongs to. The actual validation logic
// (signed tokens, app-proxy HMAC) lives outside this service and is injected
// by the application.
type SessionValidator func(token string) (*Session, error)

// StorefrontSession validates the storefront session token and injects the
// session and store IDs into the request context. Requests without a valid
// session are rejected with 401.
func StorefrontSession(validate SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(SessionHeader)
			if token == "" {
				// Fall back to a bearer token for embedded storefront widgets.
				if auth := r.Header.Get("Authorization"); auth != "" {
					parts := strings.SplitN(auth, " ", 2)
					if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
						token = parts[1]
					}
				}
			}
			if token == "" {
				writeSessionError(w, "missing session token")
				return
			}

			session, err := validate(token)
			if err != nil {
				writeSessionError(w, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			ctx = logger.WithSessionID(ctx, session.SessionID)
			if session.StoreID != "" {
				ctx = logger.WithStoreID(ctx, session.StoreID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session injected by StorefrontSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(*Session)
	return session, ok
}

func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
