package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/web/middleware"
)

// PINHandler handles the first stage of the verification chain.
type PINHandler struct {
	verifier *auth.PinVerifier
	sessions *middleware.SessionManager
}

// NewPINHandler creates a new PIN handler.
func NewPINHandler(verifier *auth.PinVerifier, sm *middleware.SessionManager) *PINHandler {
	return &PINHandler{
		verifier: verifier,
		sessions: sm,
	}
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// Verify handles POST /validate-pin. Success starts a stage-progress session
// so the face endpoint becomes reachable.
func (h *PINHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.PIN == "" {
		respondError(w, http.StatusBadRequest, "pin is required")
		return
	}

	if !h.verifier.Verify(req.PIN) {
		respondVerdict(w, http.StatusUnauthorized, false, "Incorrect PIN")
		return
	}

	session, err := h.sessions.CreateSession()
	if err != nil {
		log.Printf("could not create stage-progress session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.SetSessionCookie(w, session)

	respondVerdict(w, http.StatusOK, true, "PIN verified")
}
