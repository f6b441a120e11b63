// Package cmd contains the CLI commands for wardenctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Flag values shared by all subcommands.
var (
	verbose bool
	output  string
)

// defaultDBPath is where subcommands look for the incident database
// unless --db is given. LOGWARDEN_DB_PATH overrides it.
var defaultDBPath = "logwarden.db"

var rootCmd = &cobra.Command{
	Use:   "wardenctl",
	Short: "wardenctl - LogWarden administration tool",
	Long: `wardenctl administers a LogWarden deployment from the command line.

It operates directly on the incident database and the rule files, so it
works whether or not the server is running.

Examples:
  # List recorded incidents
  wardenctl incidents list

  # Summarize incidents by severity and rule
  wardenctl incidents stats

  # Validate a custom rules file before deploying it
  wardenctl rules check /etc/logwarden/rules.yaml

  # Generate a bcrypt hash for server.api_key_hash
  wardenctl hashkey`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if p := os.Getenv("LOGWARDEN_DB_PATH"); p != "" {
		defaultDBPath = p
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// GetOutput returns the selected output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a progress message when --verbose is set.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
