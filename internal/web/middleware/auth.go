package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const sessionContextKey contextKey = "session"

// RequirePIN is middleware that requires a session whose PIN stage passed.
// Without it the face stage could be reached out of order.
func RequirePIN(sm *SessionManager) func(http.Handler) http.Handler {
	return requireStage(sm, func(s *Session) bool { return s.PINPassed },
		`{"success": false, "message": "PIN verification required"}`)
}

// RequireFace is middleware that requires a session whose face stage passed.
func RequireFace(sm *SessionManager) func(http.Handler) http.Handler {
	return requireStage(sm, func(s *Session) bool { return s.PINPassed && s.FacePassed },
		`{"success": false, "message": "Face verification required"}`)
}

func requireStage(sm *SessionManager, passed func(*Session) bool, body string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if session == nil || !passed(session) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(body))
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext retrieves the session from the request context.
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use the Require* middleware in production.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
