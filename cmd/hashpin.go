package cmd

import (
	"fmt"

	"github.com/kozaktomas/auth-gate/internal/config"
	"github.com/spf13/cobra"
)

var hashpinCmd = &cobra.Command{
	Use:   "hashpin <pin>",
	Short: "Print the digest of a PIN for AUTH_PIN_DIGEST",
	Long: `Print the SHA-256 digest of a PIN. Store the digest in
AUTH_PIN_DIGEST so the raw PIN never appears in the environment. The same
digest form works for AUTH_VOICE_DIGEST with a normalized passphrase.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.DigestPIN(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(hashpinCmd)
}
