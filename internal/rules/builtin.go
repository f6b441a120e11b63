package rules

import "github.com/logwarden/logwarden/internal/models"

// Builtin returns fresh, validated copies of the built-in rule set.
// The order here is the evaluation and reporting order.
func Builtin() []*Rule {
	set := []*Rule{
		{
			ID:          models.RuleFailedLogin,
			Description: "Failed authentication attempt",
			Severity:    models.SeverityMedium,
			Pattern:     `(failed login|login failed|authentication failure|auth failure|invalid password|failed password|incorrect password)`,
		},
		{
			ID:          models.RuleSQLInjection,
			Description: "SQL injection marker in message text",
			Severity:    models.SeverityCritical,
			Pattern:     `(union(\s|%20)+select|select\s+.+\s+from|insert\s+into|drop\s+table|delete\s+from|\bor\s+1\s*=\s*1\b|'\s*or\s*'|'\s*(or|and)\b|--|/\*|%27|%2d%2d)`,
		},
		{
			ID:          models.RuleSuspiciousUserAgent,
			Description: "Known scanner or attack tool user agent",
			Severity:    models.SeverityHigh,
			Pattern:     `\b(sqlmap|nikto|nmap|masscan|dirbuster|gobuster|wpscan|hydra|nuclei|zgrab|acunetix|netsparker)\b`,
		},
		{
			ID:          models.RuleAdminAccess,
			Description: "Privileged account referenced",
			Severity:    models.SeverityHigh,
			Pattern:     `\b(admin|administrator|root)\b`,
		},
	}

	for _, r := range set {
		// Built-in patterns are fixed; a compile failure here is a
		// programming error, not a runtime condition.
		if err := r.Validate(); err != nil {
			panic(err)
		}
	}
	return set
}

// SeverityFor returns the severity assigned to a rule identifier,
// including the synthetic brute-force rule.
func SeverityFor(id models.RuleID) models.Severity {
	if id == models.RuleBruteForce {
		return models.SeverityHigh
	}
	for _, r := range Builtin() {
		if r.ID == id {
			return r.Severity
		}
	}
	return models.SeverityMedium
}
