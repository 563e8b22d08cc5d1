package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/capture"
	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/kozaktomas/auth-gate/internal/embedding"
	"github.com/kozaktomas/auth-gate/internal/transcribe"
	"github.com/kozaktomas/auth-gate/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification web server",
	Long: `Start the Auth Gate web server.
The server exposes the staged verification endpoints (/validate-pin,
/face-auth, /voice-auth) plus a one-shot /authenticate. Browser clients
submit captured frames and utterances and drive their own retries, so the
server runs a single matcher attempt per request.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing stage-progress cookies (overrides WEB_SESSION_SECRET)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}

	transcriber, err := transcribe.NewFromConfig(cmd.Context(), &cfg.Transcribe)
	if err != nil {
		return fmt.Errorf("configuring transcriber: %w", err)
	}
	fmt.Printf("Transcribing with %s\n", transcriber.Name())

	// HTTP clients retry by re-submitting, so the server-side matchers run a
	// single attempt per request.
	faceCfg := cfg.Face
	faceCfg.MaxAttempts = 1
	faceCfg.RetryDelaySeconds = 0
	voiceCfg := cfg.Voice
	voiceCfg.MaxAttempts = 1

	pin := auth.NewPinVerifier(cfg.PIN.Digest)
	face := auth.NewFaceMatcher(
		embedding.NewClient(cfg.Embedding.URL),
		embedding.ForName(cfg.Embedding.Distance),
		faceCfg,
		&capture.DebugWriter{Dir: cfg.Debug.CaptureDir},
	)
	voice := auth.NewVoiceMatcher(transcriber, voiceCfg)

	server := web.NewServer(cfg, pin, face, voice)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Auth Gate on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
