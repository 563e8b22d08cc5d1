package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/capture"
)

// AuthenticateHandler runs the whole verification chain in one request, for
// clients that captured everything upfront and do not want the staged flow.
type AuthenticateHandler struct {
	orchestrator  *auth.Orchestrator
	maxImageBytes int64
	maxAudioBytes int64
}

// NewAuthenticateHandler creates a new one-shot chain handler.
func NewAuthenticateHandler(orchestrator *auth.Orchestrator, maxImageBytes, maxAudioBytes int64) *AuthenticateHandler {
	return &AuthenticateHandler{
		orchestrator:  orchestrator,
		maxImageBytes: maxImageBytes,
		maxAudioBytes: maxAudioBytes,
	}
}

type authenticateRequest struct {
	PIN   string `json:"pin"`
	Image string `json:"image"` // data:image/...;base64 URI
	Audio string `json:"audio"` // data:audio/wav;base64 URI
}

// chainResponse extends the verdict with the stage that denied.
type chainResponse struct {
	Success bool   `json:"success"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// Run handles POST /authenticate.
func (h *AuthenticateHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.PIN == "" || req.Image == "" || req.Audio == "" {
		respondError(w, http.StatusBadRequest, "pin, image and audio are required")
		return
	}

	frame, err := capture.DecodeImageDataURI(req.Image, h.maxImageBytes)
	if err != nil {
		if errors.Is(err, capture.ErrImageTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid image data")
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

	outcome := h.orchestrator.Authenticate(r.Context(), req.PIN,
		&capture.BytesImageSource{Frame: frame},
		&capture.BytesAudioSource{Data: audio})

	status := http.StatusOK
	if !outcome.Granted {
		status = http.StatusUnauthorized
		if outcome.Reason == auth.MessageFaceUnavailable || outcome.Reason == auth.MessageVoiceUnavailable {
			status = http.StatusInternalServerError
		}
	}

	respondJSON(w, status, chainResponse{
		Success: outcome.Granted,
		Stage:   string(outcome.Stage),
		Message: outcome.Reason,
	})
}
