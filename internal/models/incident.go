// Package models contains the core data structures for LogWarden.
package models

import (
	"time"
)

// Severity represents the severity level of a finding or incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "low", "LOW":
		return SeverityLow
	case "medium", "MEDIUM":
		return SeverityMedium
	case "high", "HIGH":
		return SeverityHigh
	case "critical", "CRITICAL":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Rank returns a comparable ordering for severities (low=1 .. critical=4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// RuleID identifies a detection rule.
type RuleID string

const (
	RuleFailedLogin         RuleID = "FAILED_LOGIN"
	RuleSQLInjection        RuleID = "SQL_INJECTION_PATTERN"
	RuleSuspiciousUserAgent RuleID = "SUSPICIOUS_USER_AGENT"
	RuleAdminAccess         RuleID = "ADMIN_ACCESS"

	// RuleBruteForce marks synthetic incidents created when the
	// failed-login counter crosses its threshold. It has no pattern
	// and is never produced by rule evaluation.
	RuleBruteForce RuleID = "brute-force"
)

// Incident represents a recorded security incident. Incidents are
// insert-only: once recorded they are never updated or deleted.
type Incident struct {
	// ID is the unique incident identifier (UUID).
	ID string `json:"id"`

	// CreatedAt is when the incident was recorded.
	CreatedAt time.Time `json:"created_at"`

	// LogSource is the origin attributed to the triggering message,
	// an IP address when one could be derived or "unknown".
	LogSource string `json:"log_source"`

	// Findings lists the rules that matched, in rule-definition order.
	// Always non-empty. Synthetic brute-force incidents carry exactly
	// ["brute-force"].
	Findings []RuleID `json:"findings"`

	// Severity is the highest severity among the findings.
	Severity Severity `json:"severity"`

	// MessageExcerpt is a bounded prefix of the triggering message.
	MessageExcerpt string `json:"message_excerpt"`

	// EvidencePath is the locator of the archived raw message, empty
	// when evidence archiving failed or is disabled.
	EvidencePath string `json:"evidence_path,omitempty"`

	// Meta carries free-form caller metadata from the ingest payload.
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// HasFinding reports whether the incident includes the given rule.
func (i *Incident) HasFinding(rule RuleID) bool {
	for _, f := range i.Findings {
		if f == rule {
			return true
		}
	}
	return false
}
