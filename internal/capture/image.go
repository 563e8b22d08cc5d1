package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrImageTooLarge indicates a payload exceeded the configured byte limit.
var ErrImageTooLarge = errors.New("image size exceeds limit")

// ErrInvalidDataURI indicates the payload is not a data:image/... URI.
var ErrInvalidDataURI = errors.New("invalid image data URI")

// ImageSource produces one still frame per Acquire call.
type ImageSource interface {
	Acquire(ctx context.Context) ([]byte, error)
}

// FileImageSource reads frames from a file on disk. Used for the reference
// image and for kiosk setups where an external process drops frames.
type FileImageSource struct {
	Path string
}

func (s *FileImageSource) Acquire(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading frame from %s: %w", s.Path, err)
	}
	return data, nil
}

// DataURISource yields a single frame decoded from a browser-submitted
// data URI. Every Acquire returns the same frame, so retrying against it is
// pointless; callers evaluating browser captures should run one attempt.
type DataURISource struct {
	URI      string
	MaxBytes int64
}

func (s *DataURISource) Acquire(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DecodeImageDataURI(s.URI, s.MaxBytes)
}

// BytesImageSource yields a single frame from memory. Handlers that already
// decoded a payload use it to feed the matcher without re-decoding.
type BytesImageSource struct {
	Frame []byte
}

func (s *BytesImageSource) Acquire(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Frame, nil
}

// DecodeImageDataURI decodes a data:image/<fmt>;base64,<payload> string.
// The base64 payload size is checked against maxBytes before decoding.
func DecodeImageDataURI(uri string, maxBytes int64) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:image") {
		return nil, ErrInvalidDataURI
	}

	parts := strings.SplitN(uri, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}
	if !strings.HasSuffix(parts[0], ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}

	// Base64 expands data 4:3, so the check before decode is conservative.
	if maxBytes > 0 && int64(len(parts[1])) > maxBytes*4/3+4 {
		return nil, ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

// Downscale resizes an image to fit within maxSize while keeping aspect
// ratio, so frames sent to the embedding service stay small.
// Returns JPEG-encoded bytes; images already within bounds pass through.
func Downscale(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
