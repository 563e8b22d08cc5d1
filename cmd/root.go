package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "auth-gate",
	Short: "A multi-factor identity gate combining PIN, face and voice checks",
	Long: `Auth Gate verifies a person through three ordered factors: a PIN
checked against a stored digest, a face compared to a reference photo via an
embedding service, and a spoken passphrase transcribed by a speech model.
A later factor never runs until the previous one passed.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
