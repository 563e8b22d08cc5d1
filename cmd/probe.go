package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/kozaktomas/auth-gate/internal/embedding"
	"github.com/kozaktomas/auth-gate/internal/transcribe"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the verification environment is usable",
	Long: `Probe the configured environment: the reference image, the face
embedding service and the transcription provider. Run it after changing
configuration and before trusting the gate with a door.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	failures := 0

	fail := func(format string, a ...any) {
		failures++
		fmt.Printf("FAIL  "+format+"\n", a...)
	}
	ok := func(format string, a ...any) {
		fmt.Printf("ok    "+format+"\n", a...)
	}

	// Reference image on disk.
	refData, err := probeReferenceImage(cfg)
	if err != nil {
		fail("reference image: %v", err)
	} else {
		ok("reference image readable (%s)", cfg.Face.ReferenceImagePath)
	}

	// Embedding service, exercised with the reference image when available.
	client := embedding.NewClient(cfg.Embedding.URL)
	if refData != nil {
		faces, err := client.DetectFaces(cmd.Context(), refData)
		switch {
		case err != nil:
			fail("embedding service: %v", err)
		case len(faces) == 0:
			fail("embedding service reachable, but no face found in the reference image")
		case len(faces) > 1:
			ok("embedding service reachable; reference has %d faces, the first will be used", len(faces))
		default:
			ok("embedding service reachable, reference embedding has %d dims", len(faces[0].Embedding))
		}
	}

	// Transcription provider configuration.
	transcriber, err := transcribe.NewFromConfig(cmd.Context(), &cfg.Transcribe)
	if err != nil {
		fail("transcriber: %v", err)
	} else {
		ok("transcriber configured (%s)", transcriber.Name())
	}

	// Voice expectation.
	if cfg.Voice.ExpectedPhrase == "" && cfg.Voice.ExpectedDigest == "" {
		fail("no expected passphrase configured (AUTH_VOICE_PHRASE or AUTH_VOICE_DIGEST)")
	} else {
		ok("voice expectation configured")
	}

	// Microphone selection for external kiosk recorders.
	if cfg.Voice.MicIndex >= 0 {
		ok("microphone: device %d", cfg.Voice.MicIndex)
	} else {
		ok("microphone: system default")
	}

	if failures > 0 {
		return fmt.Errorf("%d probe check(s) failed", failures)
	}
	fmt.Println("Environment looks usable")
	return nil
}

func probeReferenceImage(cfg *config.Config) ([]byte, error) {
	if cfg.Face.ReferenceImagePath == "" {
		return nil, errors.New("REFERENCE_IMAGE_PATH is not set")
	}
	data, err := os.ReadFile(cfg.Face.ReferenceImagePath)
	if err != nil {
		return nil, err
	}
	if data, err = capture.Downscale(data, 800); err != nil {
		return nil, fmt.Errorf("not a decodable image: %w", err)
	}
	return data, nil
}
