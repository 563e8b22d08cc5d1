package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/kozaktomas/auth-gate/internal/embedding"
	"github.com/kozaktomas/auth-gate/internal/web/middleware"
)

// testJPEG renders a small JPEG frame.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

// jpegDataURI wraps a test JPEG in a browser-style data URI.
func jpegDataURI(t *testing.T) string {
	t.Helper()
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(testJPEG(t))
}

// wavDataURI wraps 100ms of silence in a WAV data URI.
func wavDataURI(t *testing.T) string {
	t.Helper()
	wav := capture.EncodeWAV(make([]byte, 3200), capture.TranscriptionSampleRate)
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)
}

// writeReferenceImage drops a reference JPEG into a temp dir.
func writeReferenceImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference.jpg")
	if err := os.WriteFile(path, testJPEG(t), 0o600); err != nil {
		t.Fatalf("failed to write reference image: %v", err)
	}
	return path
}

// embeddingServer mocks the face embedding service. Each call answers with
// the next entry of perCall (the last entry repeats); a nil entry means no
// faces detected. The first call is always the reference image.
func embeddingServer(t *testing.T, perCall ...[]float32) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/faces" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		idx := calls
		if idx >= len(perCall) {
			idx = len(perCall) - 1
		}
		calls++

		var faces []embedding.Face
		if perCall[idx] != nil {
			faces = []embedding.Face{{Embedding: perCall[idx], Confidence: 0.99}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"dim":   len(perCall[idx]),
			"model": "test",
			"faces": faces,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// newFaceMatcher builds a single-attempt matcher backed by serviceURL,
// matching how the web server wires its matcher.
func newFaceMatcher(t *testing.T, serviceURL string) *auth.FaceMatcher {
	t.Helper()
	cfg := config.FaceConfig{
		ReferenceImagePath: writeReferenceImage(t),
		Threshold:          0.5,
		MaxAttempts:        1,
	}
	return auth.NewFaceMatcher(embedding.NewClient(serviceURL), embedding.CosineDistance, cfg, nil)
}

// newVoiceMatcher builds a single-attempt matcher expecting "HELLO".
func newVoiceMatcher(transcriber *stubTranscriber) *auth.VoiceMatcher {
	cfg := config.VoiceConfig{
		ExpectedPhrase:       "HELLO",
		MaxAttempts:          1,
		ListenTimeoutSeconds: 1,
	}
	return auth.NewVoiceMatcher(transcriber, cfg)
}

// stubTranscriber returns a canned transcript or error.
type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Name() string { return "stub" }

func (s *stubTranscriber) Transcribe(ctx context.Context, wavAudio []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

// postJSON runs a handler against a JSON body.
func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// postJSONWithSession runs a handler with a session already in context, the
// way the Require* middleware would leave it.
func postJSONWithSession(handler http.HandlerFunc, path, body string, session *middleware.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.SetSessionInContext(req.Context(), session))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertVerdict checks a verification response body.
func assertVerdict(t *testing.T, recorder *httptest.ResponseRecorder, success bool, message string) {
	t.Helper()
	var v verdict
	parseJSONResponse(t, recorder, &v)
	if v.Success != success {
		t.Errorf("success = %v, want %v", v.Success, success)
	}
	if message != "" && v.Message != message {
		t.Errorf("message = %q, want %q", v.Message, message)
	}
}
