package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	sessionCookieName = "auth_gate_session"

	// sessionDuration bounds how long a client may take to walk the whole
	// verification chain. Short on purpose: a stage-progress cookie is not a
	// login session.
	sessionDuration = 5 * time.Minute
)

// Session tracks how far one client has progressed through the verification
// chain. It exists only between a successful PIN check and the end of the
// voice check.
type Session struct {
	ID         string
	PINPassed  bool
	FacePassed bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// SessionManager hands out signed stage-progress cookies and keeps the
// authoritative progress state server-side.
type SessionManager struct {
	secret   []byte
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionManager creates a session manager. With an empty secret a random
// per-process one is generated, which invalidates cookies across restarts.
func NewSessionManager(secret string) *SessionManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("could not generate session secret: " + err.Error())
		}
		log.Printf("WEB_SESSION_SECRET not set, using an ephemeral secret")
	}
	return &SessionManager{
		secret:   key,
		sessions: make(map[string]*Session),
	}
}

// CreateSession starts progress tracking for a client that just passed the
// PIN stage.
func (sm *SessionManager) CreateSession() (*Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}
	sessionID := base64.URLEncoding.EncodeToString(idBytes)

	now := time.Now()
	session := &Session{
		ID:        sessionID,
		PINPassed: true,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionDuration),
	}

	sm.mu.Lock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
	sm.sessions[sessionID] = session
	sm.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by ID, nil when unknown or expired.
func (sm *SessionManager) GetSession(sessionID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, ok := sm.sessions[sessionID]
	if !ok {
		return nil
	}

	if time.Now().After(session.ExpiresAt) {
		go sm.DeleteSession(sessionID)
		return nil
	}

	return session
}

// DeleteSession removes a session, ending the chain for that client.
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()
}

// MarkFacePassed records a successful face stage for the session.
func (sm *SessionManager) MarkFacePassed(sessionID string) {
	sm.mu.Lock()
	if session, ok := sm.sessions[sessionID]; ok {
		session.FacePassed = true
	}
	sm.mu.Unlock()
}

// SetSessionCookie sets the signed stage-progress cookie on the response.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	signature := sm.signData(session.ID)
	cookieValue := session.ID + "." + signature

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// ClearSessionCookie removes the stage-progress cookie.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts and validates the session from a request.
// The cookie and the Authorization header both carry the signed value.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if session := sm.fromSignedValue(cookie.Value); session != nil {
			return session
		}
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return sm.fromSignedValue(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return nil
}

func (sm *SessionManager) fromSignedValue(value string) *Session {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	if !sm.verifySignature(parts[0], parts[1]) {
		return nil
	}
	return sm.GetSession(parts[0])
}

// signData creates an HMAC signature for data.
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature.
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}
