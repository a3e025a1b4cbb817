package http

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const SessionHeader = "X-Session-ID"

type contextKey string

const sessionIDKey contextKey = "session_id"

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SessionMiddleware identifies the shopper by the X-Session-ID header. A new
// session id is issued when the header is missing or malformed, and echoed
// back so the client can keep using it.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeader)
		if !validSessionID.MatchString(sessionID) {
			sessionID = uuid.NewString()
		}

		w.Header().Set(SessionHeader, sessionID)
		ctx := WithSessionID(r.Context(), sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
