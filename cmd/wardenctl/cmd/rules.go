package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/logwarden/logwarden/internal/rules"
)

var rulesFile string

// rulesCmd represents the rules command group
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Detection rule commands",
	Long: `Commands for working with LogWarden detection rules.

The server evaluates the built-in rules merged with an optional custom
rules file. These commands validate and inspect that set without a
running server.

Examples:
  # Validate a custom rules file
  wardenctl rules check /etc/logwarden/rules.yaml

  # Show the effective rule set with a custom file merged in
  wardenctl rules list --file /etc/logwarden/rules.yaml

  # Evaluate a message against the rules
  wardenctl rules test "failed login for admin from 10.0.0.5"`,
}

// rulesCheckCmd validates a rules file
var rulesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rules file",
	Long: `Validate the YAML syntax and regex patterns of a custom rules file.

Exits non-zero when the file cannot be loaded, so it can gate a deploy.

Example:
  wardenctl rules check /etc/logwarden/rules.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		custom, err := rules.LoadRulesFromFile(path)
		if err != nil {
			return fmt.Errorf("rules file %s: %w", path, err)
		}

		merged := rules.Merge(rules.Builtin(), custom)

		fmt.Printf("%s: OK (%d custom rules, %d effective)\n", path, len(custom), len(merged))
		return nil
	},
}

// rulesListCmd shows the effective rule set
var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective rule set",
	Long: `List the rules the server would evaluate: the built-in set,
with the custom file merged over it when --file is given.

Example:
  wardenctl rules list --file /etc/logwarden/rules.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := rules.LoadSet(rulesFile)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}

		if GetOutput() == "json" {
			data, err := json.MarshalIndent(set, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal rules: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSEVERITY\tPATTERN")
		for _, r := range set {
			pattern := r.Pattern
			if len(pattern) > 60 {
				pattern = pattern[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Severity, pattern)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d rule(s)\n", len(set))
		return nil
	},
}

// rulesTestCmd evaluates a message against the rule set
var rulesTestCmd = &cobra.Command{
	Use:   "test [message]",
	Short: "Evaluate a message against the rules",
	Long: `Evaluate a log message against the effective rule set and print
the findings, the overall severity, and the extracted source address.

Example:
  wardenctl rules test "Failed login for admin from 203.0.113.7"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		set, err := rules.LoadSet(rulesFile)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		PrintVerbose("evaluating against %d rules", len(set))

		engine := rules.NewEngine(set)
		findings := engine.Evaluate(message)
		source := rules.ExtractSourceAddr(message)

		if GetOutput() == "json" {
			result := struct {
				Message  string          `json:"message"`
				Source   string          `json:"source,omitempty"`
				Findings []rules.Finding `json:"findings"`
			}{message, source, findings}
			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		if len(findings) == 0 {
			fmt.Println("No rules matched.")
			return nil
		}

		for _, f := range findings {
			fmt.Printf("  %-28s %s\n", f.Rule, f.Severity)
		}
		fmt.Printf("\nSeverity: %s\n", rules.HighestSeverity(findings))
		if source != "" {
			fmt.Printf("Source:   %s\n", source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesTestCmd)

	for _, cmd := range []*cobra.Command{rulesListCmd, rulesTestCmd} {
		cmd.Flags().StringVar(&rulesFile, "file", "", "custom rules file merged over the built-ins")
	}
}
