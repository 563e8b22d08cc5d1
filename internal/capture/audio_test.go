package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// sineWAV builds a 16-bit PCM WAV with a 440 Hz tone.
func sineWAV(t *testing.T, sampleRate, channels int, duration time.Duration) []byte {
	t.Helper()
	numFrames := int(float64(sampleRate) * duration.Seconds())
	pcm := make([]byte, numFrames*2*channels)
	for i := range numFrames {
		sample := int16(10000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := range channels {
			j := (i*channels + ch) * 2
			pcm[j] = byte(sample)
			pcm[j+1] = byte(sample >> 8)
		}
	}

	if channels == 1 {
		return EncodeWAV(pcm, sampleRate)
	}
	// EncodeWAV is mono-only; patch the header for the stereo fixture.
	wav := EncodeWAV(pcm, sampleRate)
	wav[22] = byte(channels)
	blockAlign := channels * 2
	wav[32] = byte(blockAlign)
	byteRate := sampleRate * blockAlign
	wav[28] = byte(byteRate)
	wav[29] = byte(byteRate >> 8)
	wav[30] = byte(byteRate >> 16)
	wav[31] = byte(byteRate >> 24)
	return wav
}

func TestParseWAV(t *testing.T) {
	wav := sineWAV(t, 16000, 1, 100*time.Millisecond)

	format, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", format.SampleRate)
	}
	if format.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", format.Channels)
	}
	if format.Bits != 16 {
		t.Errorf("expected 16 bits, got %d", format.Bits)
	}
	if len(format.Data) != 3200 {
		t.Errorf("expected 3200 PCM bytes, got %d", len(format.Data))
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("RIFF")},
		{"not riff", make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWAV(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrepareForTranscription_PassThrough(t *testing.T) {
	wav := sineWAV(t, 16000, 1, 100*time.Millisecond)

	out, err := PrepareForTranscription(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(wav) {
		t.Errorf("16kHz mono audio should pass through unchanged, got %d bytes from %d", len(out), len(wav))
	}
}

func TestPrepareForTranscription_Downsamples(t *testing.T) {
	wav := sineWAV(t, 48000, 1, 200*time.Millisecond)

	out, err := PrepareForTranscription(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	format, err := ParseWAV(out)
	if err != nil {
		t.Fatalf("output is not valid WAV: %v", err)
	}
	if format.SampleRate != TranscriptionSampleRate {
		t.Errorf("expected %d Hz, got %d", TranscriptionSampleRate, format.SampleRate)
	}
	if format.Channels != 1 {
		t.Errorf("expected mono, got %d channels", format.Channels)
	}

	// 48k -> 16k is a 3:1 reduction; allow slack for resampler latency.
	wantFrames := 200 * 16000 / 1000
	gotFrames := len(format.Data) / 2
	if gotFrames < wantFrames*8/10 || gotFrames > wantFrames*12/10 {
		t.Errorf("expected roughly %d frames, got %d", wantFrames, gotFrames)
	}
}

func TestPrepareForTranscription_DownmixesStereo(t *testing.T) {
	wav := sineWAV(t, 16000, 2, 100*time.Millisecond)

	out, err := PrepareForTranscription(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	format, err := ParseWAV(out)
	if err != nil {
		t.Fatalf("output is not valid WAV: %v", err)
	}
	if format.Channels != 1 {
		t.Errorf("expected mono output, got %d channels", format.Channels)
	}
	if len(format.Data) != 3200 {
		t.Errorf("expected 3200 PCM bytes after downmix, got %d", len(format.Data))
	}
}

func TestFileAudioSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utterance.wav")
	if err := os.WriteFile(path, sineWAV(t, 16000, 1, 50*time.Millisecond), 0o600); err != nil {
		t.Fatal(err)
	}

	src := &FileAudioSource{Path: path}
	if err := src.Calibrate(context.Background()); err != nil {
		t.Fatalf("calibrate failed: %v", err)
	}

	data, err := src.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseWAV(data); err != nil {
		t.Errorf("listen returned invalid WAV: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestFileAudioSource_MissingFile(t *testing.T) {
	src := &FileAudioSource{Path: "/nonexistent/utterance.wav"}
	_, err := src.Listen(context.Background(), time.Second)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestDebugWriter(t *testing.T) {
	t.Run("disabled when dir empty", func(t *testing.T) {
		w := &DebugWriter{}
		if path := w.SaveFrame([]byte("frame")); path != "" {
			t.Errorf("expected no artifact, got %s", path)
		}
	})

	t.Run("writes unique artifacts", func(t *testing.T) {
		w := &DebugWriter{Dir: t.TempDir()}
		p1 := w.SaveFrame([]byte("frame-1"))
		p2 := w.SaveFrame([]byte("frame-2"))
		if p1 == "" || p2 == "" {
			t.Fatal("expected artifacts to be written")
		}
		if p1 == p2 {
			t.Error("expected unique artifact names")
		}
		data, err := os.ReadFile(p1)
		if err != nil {
			t.Fatalf("failed to read artifact: %v", err)
		}
		if string(data) != "frame-1" {
			t.Errorf("artifact content mismatch: %q", data)
		}
	})
}

func TestDecodeAudioDataURI(t *testing.T) {
	wav := sineWAV(t, TranscriptionSampleRate, 1, 50*time.Millisecond)
	valid := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)

	tests := []struct {
		name     string
		uri      string
		maxBytes int64
		wantErr  error
	}{
		{"valid wav", valid, 1 << 20, nil},
		{"no limit", valid, 0, nil},
		{"wrong scheme", "data:image/jpeg;base64,aGVsbG8=", 1 << 20, ErrInvalidAudioDataURI},
		{"not a data uri", "http://example.com/speech.wav", 1 << 20, ErrInvalidAudioDataURI},
		{"not base64 encoded", "data:audio/wav,rawbytes", 1 << 20, ErrInvalidAudioDataURI},
		{"invalid base64", "data:audio/wav;base64,!!!not-base64!!!", 1 << 20, ErrInvalidAudioDataURI},
		{"over limit", valid, 16, ErrAudioTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DecodeAudioDataURI(tt.uri, tt.maxBytes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(data, wav) {
				t.Error("decoded payload differs from original audio")
			}
		})
	}
}

func TestBytesAudioSource(t *testing.T) {
	wav := sineWAV(t, TranscriptionSampleRate, 1, 50*time.Millisecond)
	src := &BytesAudioSource{Data: wav}

	if err := src.Calibrate(context.Background()); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	data, err := src.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if !bytes.Equal(data, wav) {
		t.Error("Listen() returned different audio than supplied")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestBytesAudioSource_Empty(t *testing.T) {
	src := &BytesAudioSource{}
	if _, err := src.Listen(context.Background(), time.Second); !errors.Is(err, ErrListenTimeout) {
		t.Errorf("expected ErrListenTimeout for empty payload, got %v", err)
	}
}

func TestBytesAudioSource_NotWAV(t *testing.T) {
	src := &BytesAudioSource{Data: []byte("definitely not audio")}
	if _, err := src.Listen(context.Background(), time.Second); err == nil {
		t.Error("expected an error for non-WAV payload")
	}
}
