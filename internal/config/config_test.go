package config

import (
	"os"
	"testing"
)

func TestDigestPIN(t *testing.T) {
	got := DigestPIN("7648")
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%s)", len(got), got)
	}
	if got != DigestPIN("7648") {
		t.Error("digest is not deterministic")
	}
	if got == DigestPIN("1234") {
		t.Error("different PINs must not collide")
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"AUTH_PIN", "AUTH_PIN_DIGEST", "AUTH_VOICE_PHRASE", "FACE_MATCH_THRESHOLD",
		"FACE_MAX_ATTEMPTS", "FACE_RETRY_DELAY", "VOICE_MAX_ATTEMPTS",
		"VOICE_LISTEN_TIMEOUT", "MIC_INDEX", "WEB_PORT", "MAX_IMAGE_MB",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Face.Threshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %v", cfg.Face.Threshold)
	}
	if cfg.Face.MaxAttempts != 3 {
		t.Errorf("expected default face attempts 3, got %d", cfg.Face.MaxAttempts)
	}
	if cfg.Voice.MaxAttempts != 3 {
		t.Errorf("expected default voice attempts 3, got %d", cfg.Voice.MaxAttempts)
	}
	if cfg.Voice.ListenTimeoutSeconds != 5 {
		t.Errorf("expected default listen timeout 5s, got %v", cfg.Voice.ListenTimeoutSeconds)
	}
	if cfg.Voice.MicIndex != -1 {
		t.Errorf("expected default mic index -1, got %d", cfg.Voice.MicIndex)
	}
	if cfg.Voice.ExpectedPhrase != "HELLO" {
		t.Errorf("expected default voice phrase HELLO, got %q", cfg.Voice.ExpectedPhrase)
	}
	if cfg.PIN.Digest != DigestPIN("7648") {
		t.Error("expected PIN digest derived from default PIN")
	}
	if cfg.Web.MaxImageBytes != 10*1024*1024 {
		t.Errorf("expected 10MB image limit, got %d", cfg.Web.MaxImageBytes)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_PIN_DIGEST", "abc123")
	t.Setenv("FACE_MATCH_THRESHOLD", "0.42")
	t.Setenv("VOICE_MAX_ATTEMPTS", "5")
	t.Setenv("MIC_INDEX", "2")

	cfg := Load()

	if cfg.PIN.Digest != "abc123" {
		t.Errorf("expected explicit digest to win, got %q", cfg.PIN.Digest)
	}
	if cfg.Face.Threshold != 0.42 {
		t.Errorf("expected threshold 0.42, got %v", cfg.Face.Threshold)
	}
	if cfg.Voice.MaxAttempts != 5 {
		t.Errorf("expected 5 voice attempts, got %d", cfg.Voice.MaxAttempts)
	}
	if cfg.Voice.MicIndex != 2 {
		t.Errorf("expected mic index 2, got %d", cfg.Voice.MicIndex)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"threshold not a number", "FACE_MATCH_THRESHOLD", "not-a-number"},
		{"threshold above one", "FACE_MATCH_THRESHOLD", "1.5"},
		{"negative attempts", "FACE_MAX_ATTEMPTS", "-1"},
		{"zero attempts", "FACE_MAX_ATTEMPTS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg := Load()

			if cfg.Face.Threshold != 0.5 && tt.key == "FACE_MATCH_THRESHOLD" {
				t.Errorf("expected fallback threshold 0.5, got %v", cfg.Face.Threshold)
			}
			if cfg.Face.MaxAttempts != 3 && tt.key == "FACE_MAX_ATTEMPTS" {
				t.Errorf("expected fallback attempts 3, got %d", cfg.Face.MaxAttempts)
			}
		})
	}
}

func TestLoad_InvalidMicIndexUsesDefaultDevice(t *testing.T) {
	t.Setenv("MIC_INDEX", "banana")

	cfg := Load()

	if cfg.Voice.MicIndex != -1 {
		t.Errorf("expected mic index -1 for invalid value, got %d", cfg.Voice.MicIndex)
	}
}
