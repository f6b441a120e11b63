// Package rules provides the detection rule engine for LogWarden.
// Rules are regular expressions over the raw message text; evaluation
// is stateless and deterministic.
package rules

import (
	"fmt"
	"regexp"

	"github.com/logwarden/logwarden/internal/models"
)

// Rule is a single detection rule.
type Rule struct {
	// ID is the unique rule identifier reported in findings.
	ID models.RuleID `yaml:"id"`
	// Description provides details about what the rule detects.
	Description string `yaml:"description,omitempty"`
	// Pattern is the regex applied to the message text.
	Pattern string `yaml:"pattern"`
	// CaseSensitive controls whether matching is case-sensitive.
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
	// Severity is the severity assigned to findings of this rule.
	Severity models.Severity `yaml:"severity"`
	// Enabled controls whether the rule is active.
	Enabled *bool `yaml:"enabled,omitempty"`

	// compiled is the compiled regex (internal use).
	compiled *regexp.Regexp
}

// IsEnabled returns whether the rule is enabled.
func (r *Rule) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// Validate validates and compiles the rule.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required for rule %q", r.ID)
	}

	flags := ""
	if !r.CaseSensitive {
		flags = "(?i)"
	}
	compiled, err := regexp.Compile(flags + r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q for rule %q: %w", r.Pattern, r.ID, err)
	}
	r.compiled = compiled

	if r.Severity == "" {
		r.Severity = models.SeverityMedium
	}

	return nil
}

// Matches reports whether the rule matches the message text.
// The rule must have been validated first.
func (r *Rule) Matches(text string) bool {
	if r.compiled == nil {
		return false
	}
	return r.compiled.MatchString(text)
}

// Finding is a single rule match.
type Finding struct {
	// Rule is the matched rule's identifier.
	Rule models.RuleID `json:"rule"`
	// Severity is the matched rule's severity.
	Severity models.Severity `json:"severity"`
}

// HighestSeverity returns the highest severity among the findings,
// or SeverityLow for an empty list.
func HighestSeverity(findings []Finding) models.Severity {
	highest := models.SeverityLow
	for _, f := range findings {
		highest = models.MaxSeverity(highest, f.Severity)
	}
	return highest
}

// RuleIDs extracts the rule identifiers from findings, in order.
func RuleIDs(findings []Finding) []models.RuleID {
	ids := make([]models.RuleID, len(findings))
	for i, f := range findings {
		ids[i] = f.Rule
	}
	return ids
}

// RulesConfig represents the top-level YAML rules file.
type RulesConfig struct {
	Rules []*Rule `yaml:"rules"`
}
