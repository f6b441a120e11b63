package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/logwarden/logwarden/internal/models"
	"github.com/logwarden/logwarden/internal/storage"
)

var (
	incidentsDBPath   string
	incidentsSeverity string
	incidentsRule     string
	incidentsSource   string
	incidentsSince    time.Duration
	incidentsLimit    int
)

// incidentsCmd represents the incidents command group
var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Incident inspection commands",
	Long: `Commands for inspecting recorded incidents.

These commands operate directly on the database file and are intended
for operators to review incidents without going through the HTTP API.

Examples:
  # List the most recent incidents
  wardenctl incidents list

  # List critical incidents from one source
  wardenctl incidents list --severity critical --source 203.0.113.7

  # Summarize the incident database
  wardenctl incidents stats`,
}

// incidentsListCmd lists recorded incidents
var incidentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded incidents",
	Long: `List incidents from the database, newest first.

Filters compose: severity, rule, source, and a time window.

Examples:
  wardenctl incidents list --limit 20
  wardenctl incidents list --rule FAILED_LOGIN --since 24h
  wardenctl incidents list --severity high -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(incidentsDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		filter := &storage.IncidentFilter{
			Source:   incidentsSource,
			Rule:     models.RuleID(incidentsRule),
			Severity: models.Severity(incidentsSeverity),
			Limit:    incidentsLimit,
		}
		if incidentsSince > 0 {
			filter.Since = time.Now().UTC().Add(-incidentsSince)
		}

		ctx := context.Background()
		page, err := store.Incidents().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}

		if GetOutput() == "json" {
			data, err := json.MarshalIndent(page, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal incidents: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(page.Incidents) == 0 {
			fmt.Println("No incidents found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-20s  %-15s  %-9s  %s\n",
			"ID", "CREATED", "SOURCE", "SEVERITY", "FINDINGS")
		fmt.Println(strings.Repeat("-", 110))

		for _, inc := range page.Incidents {
			findings := make([]string, len(inc.Findings))
			for i, f := range inc.Findings {
				findings[i] = string(f)
			}
			fmt.Printf("%-36s  %-20s  %-15s  %-9s  %s\n",
				inc.ID,
				inc.CreatedAt.Format("2006-01-02 15:04:05"),
				inc.LogSource,
				inc.Severity,
				strings.Join(findings, ","),
			)
		}
		fmt.Printf("\nShowing %d of %d incident(s)\n", len(page.Incidents), page.Total)

		return nil
	},
}

// incidentsStatsCmd summarizes the incident database
var incidentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded incidents",
	Long: `Print incident totals broken down by severity, rule, and the most
active sources.

Example:
  wardenctl incidents stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(incidentsDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		repo := store.Incidents()

		total, err := repo.Count(ctx)
		if err != nil {
			return fmt.Errorf("count incidents: %w", err)
		}
		last24h, err := repo.CountSince(ctx, time.Now().UTC().Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("count recent incidents: %w", err)
		}
		bySeverity, err := repo.CountBySeverity(ctx)
		if err != nil {
			return fmt.Errorf("count by severity: %w", err)
		}
		byRule, err := repo.CountByRule(ctx)
		if err != nil {
			return fmt.Errorf("count by rule: %w", err)
		}
		topSources, err := repo.TopSources(ctx, 10)
		if err != nil {
			return fmt.Errorf("top sources: %w", err)
		}

		if GetOutput() == "json" {
			result := struct {
				Total      int64                     `json:"total"`
				Last24h    int64                     `json:"last24h"`
				BySeverity map[models.Severity]int64 `json:"bySeverity"`
				ByRule     map[models.RuleID]int64   `json:"byRule"`
				TopSources []*storage.SourceCount    `json:"topSources"`
			}{total, last24h, bySeverity, byRule, topSources}
			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("\nTotal incidents: %d (%d in the last 24h)\n", total, last24h)

		fmt.Println("\nBy severity:")
		for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
			if count, ok := bySeverity[sev]; ok {
				fmt.Printf("  %-9s %d\n", sev, count)
			}
		}

		fmt.Println("\nBy rule:")
		ruleIDs := make([]string, 0, len(byRule))
		for id := range byRule {
			ruleIDs = append(ruleIDs, string(id))
		}
		sort.Strings(ruleIDs)
		for _, id := range ruleIDs {
			fmt.Printf("  %-28s %d\n", id, byRule[models.RuleID(id)])
		}

		if len(topSources) > 0 {
			fmt.Println("\nTop sources:")
			for _, sc := range topSources {
				fmt.Printf("  %-15s %d\n", sc.Source, sc.Count)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(incidentsCmd)
	incidentsCmd.AddCommand(incidentsListCmd)
	incidentsCmd.AddCommand(incidentsStatsCmd)

	// Common flags (db has default value)
	for _, cmd := range []*cobra.Command{incidentsListCmd, incidentsStatsCmd} {
		cmd.Flags().StringVar(&incidentsDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	// List-specific flags
	incidentsListCmd.Flags().StringVar(&incidentsSeverity, "severity", "", "filter by severity (low, medium, high, critical)")
	incidentsListCmd.Flags().StringVar(&incidentsRule, "rule", "", "filter by rule identifier")
	incidentsListCmd.Flags().StringVar(&incidentsSource, "source", "", "filter by log source")
	incidentsListCmd.Flags().DurationVar(&incidentsSince, "since", 0, "only incidents newer than this (e.g. 24h)")
	incidentsListCmd.Flags().IntVarP(&incidentsLimit, "limit", "n", 50, "maximum incidents to show")
}

// openDatabase opens the SQLite database.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	PrintVerbose("opening database %s", path)
	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return store, nil
}
