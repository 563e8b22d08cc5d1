package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/kozaktomas/auth-gate/internal/transcribe"
)

// MessageVoiceUnavailable marks a voice denial caused by the transcription
// service rather than the speaker. The web layer maps it to a server fault.
const MessageVoiceUnavailable = "Speech recognition service unavailable"

// VoiceMatcher checks a spoken passphrase against the configured expectation.
// It holds no state across Evaluate calls.
type VoiceMatcher struct {
	transcriber transcribe.Transcriber
	cfg         config.VoiceConfig
}

func NewVoiceMatcher(transcriber transcribe.Transcriber, cfg config.VoiceConfig) *VoiceMatcher {
	return &VoiceMatcher{transcriber: transcriber, cfg: cfg}
}

// NormalizeTranscript prepares a transcript or expected phrase for
// comparison: diacritics removed, punctuation stripped, whitespace collapsed,
// uppercased. Speech models add punctuation freely ("Hello." vs "HELLO"),
// which must not fail a match.
func NormalizeTranscript(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// matchesExpected compares a normalized transcript against the configured
// phrase, or against its digest when only the digest form is configured.
func (m *VoiceMatcher) matchesExpected(normalized string) bool {
	if m.cfg.ExpectedPhrase != "" {
		return normalized == NormalizeTranscript(m.cfg.ExpectedPhrase)
	}
	if m.cfg.ExpectedDigest != "" {
		want, err := hex.DecodeString(m.cfg.ExpectedDigest)
		if err != nil || len(want) != sha256.Size {
			log.Printf("stored voice digest is malformed; voice checks will fail")
			return false
		}
		sum := sha256.Sum256([]byte(normalized))
		return subtle.ConstantTimeCompare(sum[:], want) == 1
	}
	return false
}

// Evaluate listens for the passphrase until it matches or attempts run out.
// The source is exclusively owned for the duration of the call and released
// on every exit path. Listen timeouts and wrong phrases consume attempts;
// transcription faults and device faults end the call immediately.
func (m *VoiceMatcher) Evaluate(ctx context.Context, source capture.AudioSource) (bool, string) {
	defer source.Close()

	listenTimeout := time.Duration(m.cfg.ListenTimeoutSeconds * float64(time.Second))
	lastFailure := "no speech detected"

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false, "Verification cancelled"
		}

		if err := source.Calibrate(ctx); err != nil {
			log.Printf("ambient noise calibration failed: %v", err)
			return false, fmt.Sprintf("Microphone error: %v", err)
		}

		audio, err := source.Listen(ctx, listenTimeout)
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrListenTimeout):
				// No input is not wrong input; re-listen.
				log.Printf("voice attempt %d/%d: no speech before timeout", attempt, m.cfg.MaxAttempts)
				lastFailure = "no speech detected"
				continue
			case ctx.Err() != nil:
				return false, "Verification cancelled"
			default:
				log.Printf("audio capture failed: %v", err)
				return false, fmt.Sprintf("Microphone error: %v", err)
			}
		}

		prepared, err := capture.PrepareForTranscription(audio)
		if err != nil {
			log.Printf("captured audio unusable: %v", err)
			return false, fmt.Sprintf("Microphone error: %v", err)
		}

		text, err := m.transcriber.Transcribe(ctx, prepared)
		if err != nil {
			// Both faults are terminal: the environment, not the speaker,
			// is the problem, so burning attempts would be unfair.
			if errors.Is(err, transcribe.ErrNoSpeech) {
				log.Printf("transcription produced nothing intelligible")
				return false, "Could not understand audio"
			}
			log.Printf("transcription failed: %v", err)
			return false, MessageVoiceUnavailable
		}

		if m.matchesExpected(NormalizeTranscript(text)) {
			log.Printf("voice passphrase verified on attempt %d", attempt)
			return true, "Voice verified"
		}

		remaining := m.cfg.MaxAttempts - attempt
		log.Printf("voice attempt %d/%d: incorrect passphrase, %d attempts remaining",
			attempt, m.cfg.MaxAttempts, remaining)
		lastFailure = "incorrect passphrase"
	}

	return false, fmt.Sprintf("Maximum attempts reached (%s). Access denied.", lastFailure)
}
