package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/auth-gate/internal/config"
)

// ErrUnavailable indicates the transcription service could not be reached or
// failed server-side. Callers must treat this as an environment fault and
// stop retrying.
var ErrUnavailable = errors.New("transcription service unavailable")

// ErrNoSpeech indicates the service processed the audio but could not make
// out any words.
var ErrNoSpeech = errors.New("could not understand audio")

// Transcriber converts captured speech audio into text.
type Transcriber interface {
	// Name returns the model identifier, for logs.
	Name() string
	// Transcribe converts WAV audio into a raw transcript. The transcript is
	// not normalized; comparison rules live with the caller.
	Transcribe(ctx context.Context, wavAudio []byte) (string, error)
}

// NewFromConfig builds the configured transcription provider.
func NewFromConfig(ctx context.Context, cfg *config.TranscribeConfig) (Transcriber, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.OpenAIToken == "" {
			return nil, errors.New("OPENAI_TOKEN is required for the openai transcriber")
		}
		return NewOpenAITranscriber(cfg.OpenAIToken), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini transcriber")
		}
		return NewGeminiTranscriber(ctx, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Provider)
	}
}
