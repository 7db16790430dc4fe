package secrets

import (
	"time"
)

// AuditLog records what a Redact call removed. It never holds secret values.
type AuditLog struct {
	Timestamp  time.Time   `json:"timestamp"`
	Redactions []Redaction `json:"redactions"`
	Summary    Summary     `json:"summary"`
}

// Redaction describes a single redacted secret.
type Redaction struct {
	RuleID      string `json:"rule_id"`
	RuleDesc    string `json:"rule_desc"`
	LineNumber  int    `json:"line_number"`
	OriginalLen int    `json:"original_len"`
	Preview     string `json:"preview"` // first 4 chars only
}

// Summary aggregates redactions by rule.
type Summary struct {
	TotalSecrets     int            `json:"total_secrets"`
	UniqueRules      int            `json:"unique_rules"`
	RuleCounts       map[string]int `json:"rule_counts"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// HasRedactions returns true if any secrets were redacted.
func (a *AuditLog) HasRedactions() bool {
	return len(a.Redactions) > 0
}

// Rules returns the distinct rule IDs that fired, in first-seen order.
func (a *AuditLog) Rules() []string {
	seen := make(map[string]bool, len(a.Redactions))
	rules := make([]string, 0, len(a.Redactions))
	for _, r := range a.Redactions {
		if !seen[r.RuleID] {
			seen[r.RuleID] = true
			rules = append(rules, r.RuleID)
		}
	}
	return rules
}
