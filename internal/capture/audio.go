package capture

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"
)

// TranscriptionSampleRate is what speech models expect: 16 kHz mono PCM.
const TranscriptionSampleRate = 16000

// ErrListenTimeout indicates no speech arrived within the listen window.
var ErrListenTimeout = errors.New("no speech detected before timeout")

// ErrDeviceUnavailable indicates the audio input device could not be opened
// or read.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// AudioSource records one utterance per Listen call.
type AudioSource interface {
	// Calibrate samples the ambient-noise baseline. Bounded; called before
	// each Listen.
	Calibrate(ctx context.Context) error
	// Listen records speech for up to timeout and returns WAV bytes.
	Listen(ctx context.Context, timeout time.Duration) ([]byte, error)
	// Close releases the device handle. Safe to call more than once.
	Close() error
}

// FileAudioSource replays a WAV file, for kiosk setups where an external
// recorder drops utterances, and for tests.
type FileAudioSource struct {
	Path string

	calibrated bool
}

func (s *FileAudioSource) Calibrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.calibrated = true
	return nil
}

func (s *FileAudioSource) Listen(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if _, err := ParseWAV(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *FileAudioSource) Close() error { return nil }

// BytesAudioSource replays one in-memory WAV utterance, typically decoded
// from a request payload. Every Listen returns the same utterance, so
// request-scoped callers should run a single attempt.
type BytesAudioSource struct {
	Data []byte
}

func (s *BytesAudioSource) Calibrate(ctx context.Context) error { return ctx.Err() }

func (s *BytesAudioSource) Listen(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Data) == 0 {
		return nil, ErrListenTimeout
	}
	if _, err := ParseWAV(s.Data); err != nil {
		return nil, err
	}
	return s.Data, nil
}

func (s *BytesAudioSource) Close() error { return nil }

// ErrInvalidAudioDataURI indicates the payload is not a data:audio/... URI.
var ErrInvalidAudioDataURI = errors.New("invalid audio data URI")

// ErrAudioTooLarge indicates a payload exceeded the configured byte limit.
var ErrAudioTooLarge = errors.New("audio size exceeds limit")

// DecodeAudioDataURI decodes a data:audio/<fmt>;base64,<payload> string.
func DecodeAudioDataURI(uri string, maxBytes int64) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:audio") {
		return nil, ErrInvalidAudioDataURI
	}

	parts := strings.SplitN(uri, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: missing payload separator", ErrInvalidAudioDataURI)
	}
	if !strings.HasSuffix(parts[0], ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidAudioDataURI)
	}

	if maxBytes > 0 && int64(len(parts[1])) > maxBytes*4/3+4 {
		return nil, ErrAudioTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudioDataURI, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrAudioTooLarge
	}
	return data, nil
}

// WAVFormat describes the PCM layout of a parsed WAV payload.
type WAVFormat struct {
	SampleRate int
	Channels   int
	Bits       int
	Data       []byte // raw PCM samples
}

// ParseWAV reads a RIFF/WAVE header and returns the PCM payload.
// Only 16-bit PCM is supported, which is what every capture path produces.
func ParseWAV(data []byte) (*WAVFormat, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE file")
	}

	// Walk chunks; fmt and data may appear after optional metadata chunks.
	var format WAVFormat
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, errors.New("malformed fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("unsupported WAV encoding %d, want PCM", audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.Bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			format.Data = data[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		pos = body + chunkSize + chunkSize%2
	}

	if !haveFmt || format.Data == nil {
		return nil, errors.New("missing fmt or data chunk")
	}
	if format.Bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", format.Bits)
	}
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", format.Channels)
	}
	return &format, nil
}

// EncodeWAV wraps 16-bit mono PCM in a RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels = 1
		bits     = 16
	)
	blockAlign := channels * bits / 8
	out := make([]byte, 44+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], channels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bits)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)

	return out
}

// PrepareForTranscription converts captured WAV audio to 16 kHz mono,
// the format speech models are tuned for. Audio already in that format
// passes through unchanged.
func PrepareForTranscription(wavAudio []byte) ([]byte, error) {
	format, err := ParseWAV(wavAudio)
	if err != nil {
		return nil, err
	}

	pcm := format.Data
	if format.Channels == 2 {
		pcm = stereoToMono(pcm)
	}
	if format.SampleRate == TranscriptionSampleRate {
		if format.Channels == 1 {
			return wavAudio, nil
		}
		return EncodeWAV(pcm, TranscriptionSampleRate), nil
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(format.SampleRate),
		OutputRate: float64(TranscriptionSampleRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	// int16 little-endian samples, normalized to [-1, 1].
	numSamples := len(pcm) / 2
	input := make([]float64, numSamples)
	for i := range numSamples {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		input[i] = float64(sample) / 32768.0
	}

	output, err := resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	outPCM := make([]byte, len(output)*2)
	for i, s := range output {
		sample := int16(s * 32767.0)
		if s > 1.0 {
			sample = 32767
		} else if s < -1.0 {
			sample = -32768
		}
		outPCM[i*2] = byte(sample)
		outPCM[i*2+1] = byte(sample >> 8)
	}

	return EncodeWAV(outPCM, TranscriptionSampleRate), nil
}

// stereoToMono averages L and R 16-bit samples.
func stereoToMono(pcm []byte) []byte {
	numFrames := len(pcm) / 4
	out := make([]byte, numFrames*2)
	for i := range numFrames {
		j := i * 4
		l := int16(pcm[j]) | int16(pcm[j+1])<<8
		r := int16(pcm[j+2]) | int16(pcm[j+3])<<8
		m := int16((int32(l) + int32(r)) / 2)
		out[i*2] = byte(m)
		out[i*2+1] = byte(m >> 8)
	}
	return out
}
