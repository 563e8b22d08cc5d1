package transcribe

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

const transcribePrompt = "Transcribe the spoken words in this audio clip. " +
	"Reply with the transcript only, no commentary. " +
	"If there is no intelligible speech, reply with an empty string."

// GeminiTranscriber transcribes speech with the Gemini API.
type GeminiTranscriber struct {
	client *genai.Client
}

func NewGeminiTranscriber(ctx context.Context, apiKey string) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiTranscriber{client: client}, nil
}

func (t *GeminiTranscriber) Name() string {
	return geminiModel
}

func (t *GeminiTranscriber) Transcribe(ctx context.Context, wavAudio []byte) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{InlineData: &genai.Blob{Data: wavAudio, MIMEType: "audio/wav"}},
			},
		},
	}

	result, err := t.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
