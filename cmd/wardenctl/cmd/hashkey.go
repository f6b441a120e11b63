package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/logwarden/logwarden/internal/security"
)

// hashkeyCmd generates a bcrypt hash for the ingest API key
var hashkeyCmd = &cobra.Command{
	Use:   "hashkey",
	Short: "Generate a bcrypt hash for the API key",
	Long: `Generate a bcrypt hash of an API key for server.api_key_hash.

The key is prompted interactively for security reasons (to avoid
exposing it in shell history). Configuring the hash instead of the
plaintext key keeps the secret out of the config file.

Example:
  wardenctl hashkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := promptSecret("Enter API key: ")
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		if key == "" {
			return fmt.Errorf("API key must not be empty")
		}

		confirm, err := promptSecret("Confirm API key: ")
		if err != nil {
			return fmt.Errorf("read key confirmation: %w", err)
		}
		if key != confirm {
			return fmt.Errorf("keys do not match")
		}

		hash, err := security.HashAPIKey(key)
		if err != nil {
			return fmt.Errorf("hash key: %w", err)
		}

		fmt.Println("\nAdd to the server config:")
		fmt.Println("server:")
		fmt.Printf("  api_key_hash: %q\n", hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashkeyCmd)
}

// promptSecret reads a secret from stdin, suppressing echo when stdin
// is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := syscall.Stdin
	if !term.IsTerminal(fd) {
		// Piped input, e.g. from a script.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
