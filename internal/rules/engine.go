package rules

import (
	"regexp"
	"sync"
	"sync/atomic"
)

// ipv4Pattern matches the first dotted-quad address in a message.
var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// ExtractSourceAddr returns the first IPv4-shaped address in the text,
// scanning left to right, or "" when none is present.
func ExtractSourceAddr(text string) string {
	return ipv4Pattern.FindString(text)
}

// Engine evaluates message text against an ordered rule set.
// The rule set can be swapped atomically for hot reload; evaluation
// itself is stateless.
type Engine struct {
	mu    sync.RWMutex
	rules []*Rule

	stats *EngineStats
}

// EngineStats tracks engine statistics using atomic operations.
type EngineStats struct {
	Evaluated atomic.Int64
	Matched   atomic.Int64
}

// NewEngine creates an engine with the given validated rules.
func NewEngine(rules []*Rule) *Engine {
	return &Engine{
		rules: rules,
		stats: &EngineStats{},
	}
}

// Evaluate runs every enabled rule against the text and returns the
// findings in rule-definition order. All rules are evaluated; there is
// no short-circuit, so finding order is deterministic for a given set.
func (e *Engine) Evaluate(text string) []Finding {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	e.stats.Evaluated.Add(1)

	var findings []Finding
	for _, rule := range rules {
		if !rule.IsEnabled() {
			continue
		}
		if rule.Matches(text) {
			findings = append(findings, Finding{Rule: rule.ID, Severity: rule.Severity})
		}
	}

	if len(findings) > 0 {
		e.stats.Matched.Add(1)
	}
	return findings
}

// Rules returns a copy of the current rule set.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*Rule, len(e.rules))
	copy(result, e.rules)
	return result
}

// Reload replaces the rule set. All rules are validated before the
// swap; on error the previous set stays active.
func (e *Engine) Reload(rules []*Rule) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	return nil
}

// EngineStatsSnapshot is a snapshot of engine statistics.
type EngineStatsSnapshot struct {
	Evaluated int64
	Matched   int64
}

// Stats returns a snapshot of engine statistics.
func (e *Engine) Stats() EngineStatsSnapshot {
	return EngineStatsSnapshot{
		Evaluated: e.stats.Evaluated.Load(),
		Matched:   e.stats.Matched.Load(),
	}
}
