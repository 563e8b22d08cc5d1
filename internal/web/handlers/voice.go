package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/web/middleware"
)

// VoiceHandler handles the last stage of the verification chain. The browser
// records the utterance and submits it as a WAV data URI; the matcher behind
// this handler runs a single attempt per call since replaying the same
// payload cannot change the transcript.
type VoiceHandler struct {
	matcher       *auth.VoiceMatcher
	sessions      *middleware.SessionManager
	maxAudioBytes int64
}

// NewVoiceHandler creates a new voice handler.
func NewVoiceHandler(matcher *auth.VoiceMatcher, sm *middleware.SessionManager, maxAudioBytes int64) *VoiceHandler {
	return &VoiceHandler{
		matcher:       matcher,
		sessions:      sm,
		maxAudioBytes: maxAudioBytes,
	}
}

type voiceRequest struct {
	Audio string `json:"audio"` // data:audio/wav;base64 URI
}

// Verify handles POST /voice-auth. Requires a session whose face stage
// passed. Success completes the chain and retires the session.
func (h *VoiceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Audio == "" {
		respondError(w, http.StatusBadRequest, "audio is required")
		return
	}

	audio, err := capture.DecodeAudioDataURI(req.Audio, h.maxAudioBytes)
	if err != nil {
		if errors.Is(err, capture.ErrAudioTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid audio data")
		return
	}

	ok, message := h.matcher.Evaluate(r.Context(), &capture.BytesAudioSource{Data: audio})
	if !ok {
		if message == auth.MessageVoiceUnavailable {
			respondVerdict(w, http.StatusInternalServerError, false, message)
			return
		}
		respondVerdict(w, http.StatusUnauthorized, false, message)
		return
	}

	// The chain is complete; the stage-progress session has done its job.
	if session := middleware.GetSessionFromContext(r.Context()); session != nil {
		h.sessions.DeleteSession(session.ID)
	}
	h.sessions.ClearSessionCookie(w)

	respondVerdict(w, http.StatusOK, true, "Access granted")
}
