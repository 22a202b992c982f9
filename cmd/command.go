package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

var commandCmd = &cobra.Command{
	Use:   "command [name]",
	Short: "Run one-time command (secret)",
	RunE:  runCommand,
}

func init() {
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "available: secret")
		return nil
	}
	switch name := args[0]; name {
	case "secret":
		secret, err := newSessionSecret()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "SESSION_SECRET=%s\n", secret)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", name)
	}
}

// newSessionSecret returns 32 random bytes, base64url encoded.
func newSessionSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
