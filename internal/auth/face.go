package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/kozaktomas/auth-gate/internal/embedding"
)

// maxFrameEdge bounds captured frames before they go to the embedding
// service, keeping payloads small without hurting detection.
const maxFrameEdge = 800

// FaceProvider extracts face embeddings from an image.
type FaceProvider interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]embedding.Face, error)
}

// FaceMatcher compares captured frames against a reference photo.
// The reference embedding is computed lazily on first use and memoized for
// the life of the matcher; concurrent first calls compute it once.
type FaceMatcher struct {
	provider FaceProvider
	distance embedding.DistanceFunc
	cfg      config.FaceConfig
	debug    *capture.DebugWriter

	refMu  sync.Mutex
	ref    []float32
	refSet bool

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFaceMatcher creates a matcher. distance may be nil, defaulting to
// cosine distance.
func NewFaceMatcher(provider FaceProvider, distance embedding.DistanceFunc, cfg config.FaceConfig, debug *capture.DebugWriter) *FaceMatcher {
	if distance == nil {
		distance = embedding.CosineDistance
	}
	return &FaceMatcher{
		provider: provider,
		distance: distance,
		cfg:      cfg,
		debug:    debug,
		sleep:    sleepCtx,
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// referenceEmbedding loads and encodes the reference image, memoizing the
// result. Only success is memoized: a down embedding service must not poison
// the matcher for its whole lifetime.
func (m *FaceMatcher) referenceEmbedding(ctx context.Context) ([]float32, error) {
	m.refMu.Lock()
	defer m.refMu.Unlock()

	if m.refSet {
		return m.ref, nil
	}

	if m.cfg.ReferenceImagePath == "" {
		return nil, errors.New("no reference image configured")
	}
	data, err := os.ReadFile(m.cfg.ReferenceImagePath)
	if err != nil {
		return nil, fmt.Errorf("reading reference image: %w", err)
	}
	if data, err = capture.Downscale(data, maxFrameEdge); err != nil {
		return nil, fmt.Errorf("decoding reference image: %w", err)
	}

	faces, err := m.provider.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("encoding reference image: %w", err)
	}
	if len(faces) == 0 {
		return nil, errors.New("no face detected in the reference image")
	}
	if len(faces) > 1 {
		log.Printf("reference image contains %d faces, using the first", len(faces))
	}

	m.ref = faces[0].Embedding
	m.refSet = true
	log.Printf("reference face embedding computed (%d dims)", len(m.ref))
	return m.ref, nil
}

// Evaluate captures frames from source and compares them against the
// reference until a match or MaxAttempts. The returned error is an
// environment fault (unusable reference image, embedding service down);
// user-attributable failures come back inside the decision.
func (m *FaceMatcher) Evaluate(ctx context.Context, source capture.ImageSource) (FaceDecision, error) {
	ref, err := m.referenceEmbedding(ctx)
	if err != nil {
		return FaceDecision{Result: FaceCaptureFailed, Distance: -1}, err
	}

	last := FaceDecision{Result: FaceCaptureFailed, Distance: -1}
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			last.Attempts = attempt - 1
			return last, err
		}

		decision, err := m.attempt(ctx, ref, source)
		decision.Attempts = attempt
		if err != nil {
			return decision, err
		}
		if decision.Result == FaceMatched {
			return decision, nil
		}

		log.Printf("face attempt %d/%d: %s (distance %.3f)",
			attempt, m.cfg.MaxAttempts, decision.Result, decision.Distance)
		last = decision

		if attempt < m.cfg.MaxAttempts {
			delay := time.Duration(m.cfg.RetryDelaySeconds * float64(time.Second))
			if err := m.sleep(ctx, delay); err != nil {
				return last, err
			}
		}
	}

	return last, nil
}

// attempt runs a single capture-and-compare cycle.
func (m *FaceMatcher) attempt(ctx context.Context, ref []float32, source capture.ImageSource) (FaceDecision, error) {
	frame, err := source.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return FaceDecision{Result: FaceCaptureFailed, Distance: -1}, ctx.Err()
		}
		log.Printf("frame acquisition failed: %v", err)
		return FaceDecision{Result: FaceCaptureFailed, Distance: -1}, nil
	}

	if path := m.debug.SaveFrame(frame); path != "" {
		log.Printf("captured frame saved to %s", path)
	}

	if frame, err = capture.Downscale(frame, maxFrameEdge); err != nil {
		log.Printf("captured frame is not a decodable image: %v", err)
		return FaceDecision{Result: FaceCaptureFailed, Distance: -1}, nil
	}

	faces, err := m.provider.DetectFaces(ctx, frame)
	if err != nil {
		// The embedding service is an environment dependency; its failure is
		// not a statement about the user in front of the camera.
		return FaceDecision{Result: FaceCaptureFailed, Distance: -1}, err
	}

	switch {
	case len(faces) == 0:
		return FaceDecision{Result: FaceNoFaceDetected, Distance: -1}, nil
	case len(faces) > 1:
		// Proceed with the first face but keep the flag: a second face in
		// frame may be someone tailgating.
		dist := m.distance(ref, faces[0].Embedding)
		result := FaceMultipleDetected
		if dist < m.cfg.Threshold {
			result = FaceMatched
		}
		return FaceDecision{Result: result, Distance: dist, MultipleFaces: true}, nil
	default:
		dist := m.distance(ref, faces[0].Embedding)
		if dist < m.cfg.Threshold {
			return FaceDecision{Result: FaceMatched, Distance: dist}, nil
		}
		return FaceDecision{Result: FaceNotMatched, Distance: dist}, nil
	}
}
