package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const whisperModel = openai.AudioModelWhisper1

// OpenAITranscriber transcribes speech with the OpenAI audio API.
type OpenAITranscriber struct {
	client *openai.Client
}

func NewOpenAITranscriber(apiKey string) *OpenAITranscriber {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAITranscriber{client: &client}
}

func (t *OpenAITranscriber) Name() string {
	return whisperModel
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, wavAudio []byte) (string, error) {
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: whisperModel,
		File:  openai.File(bytes.NewReader(wavAudio), "speech.wav", "audio/wav"),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) && apierr.StatusCode < http.StatusInternalServerError {
			// The service answered but rejected the audio.
			return "", fmt.Errorf("%w: %v", ErrNoSpeech, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
