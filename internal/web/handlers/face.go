package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/web/middleware"
)

// FaceHandler handles the second stage of the verification chain. The
// browser submits one frame per request and drives its own retries, so the
// matcher behind this handler runs a single attempt per call.
type FaceHandler struct {
	matcher       *auth.FaceMatcher
	sessions      *middleware.SessionManager
	maxImageBytes int64
}

// NewFaceHandler creates a new face handler.
func NewFaceHandler(matcher *auth.FaceMatcher, sm *middleware.SessionManager, maxImageBytes int64) *FaceHandler {
	return &FaceHandler{
		matcher:       matcher,
		sessions:      sm,
		maxImageBytes: maxImageBytes,
	}
}

type faceRequest struct {
	Image string `json:"image"` // data:image/...;base64 URI
}

// Verify handles POST /face-auth. Requires a session whose PIN stage passed;
// success upgrades the session so the voice endpoint becomes reachable.
func (h *FaceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req faceRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
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

	decision, err := h.matcher.Evaluate(r.Context(), &capture.BytesImageSource{Frame: frame})
	if err != nil {
		log.Printf("face stage environment fault: %v", err)
		respondVerdict(w, http.StatusInternalServerError, false, auth.MessageFaceUnavailable)
		return
	}
	if decision.Result != auth.FaceMatched {
		respondVerdict(w, http.StatusUnauthorized, false, decision.Message())
		return
	}
	if decision.MultipleFaces {
		log.Printf("face matched with multiple faces in frame (distance %.3f)", decision.Distance)
	}

	session := middleware.GetSessionFromContext(r.Context())
	if session != nil {
		h.sessions.MarkFacePassed(session.ID)
	}

	respondVerdict(w, http.StatusOK, true, decision.Message())
}
