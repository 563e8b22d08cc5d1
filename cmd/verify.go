package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/kozaktomas/auth-gate/internal/embedding"
	"github.com/kozaktomas/auth-gate/internal/transcribe"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the full verification chain against local capture files",
	Long: `Run the PIN, face and voice checks in one shot using files on disk.
Useful for kiosk setups where an external process drops camera frames and
microphone recordings, and for exercising the chain without the web server.
Retry policy applies: the face stage re-reads the image file between
attempts, so a kiosk recorder may replace it while the gate waits.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("pin", "", "PIN to verify (required)")
	verifyCmd.Flags().String("image", "", "Path to the captured camera frame (required)")
	verifyCmd.Flags().String("audio", "", "Path to the recorded passphrase WAV (required)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	pin := mustGetString(cmd, "pin")
	imagePath := mustGetString(cmd, "image")
	audioPath := mustGetString(cmd, "audio")
	if pin == "" || imagePath == "" || audioPath == "" {
		return errors.New("--pin, --image and --audio are all required")
	}

	cfg := config.Load()

	transcriber, err := transcribe.NewFromConfig(cmd.Context(), &cfg.Transcribe)
	if err != nil {
		return fmt.Errorf("configuring transcriber: %w", err)
	}

	orchestrator := auth.NewOrchestrator(
		auth.NewPinVerifier(cfg.PIN.Digest),
		auth.NewFaceMatcher(
			embedding.NewClient(cfg.Embedding.URL),
			embedding.ForName(cfg.Embedding.Distance),
			cfg.Face,
			&capture.DebugWriter{Dir: cfg.Debug.CaptureDir},
		),
		auth.NewVoiceMatcher(transcriber, cfg.Voice),
	)

	outcome := orchestrator.Authenticate(cmd.Context(), pin,
		&capture.FileImageSource{Path: imagePath},
		&capture.FileAudioSource{Path: audioPath})

	if !outcome.Granted {
		return fmt.Errorf("access denied at %s stage: %s", outcome.Stage, outcome.Reason)
	}

	fmt.Println("Access granted")
	return nil
}
