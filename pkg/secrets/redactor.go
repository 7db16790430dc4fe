package secrets

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Result holds redacted content and its audit trail.
type Result struct {
	Content string
	Audit   AuditLog
}

// Redact replaces detected secrets with [REDACTED:rule-id:preview] markers.
// The markers keep some semantic context for embeddings while hiding the value.
func (s *Scrubber) Redact(content string) Result {
	start := time.Now()

	findings := s.Detect(content)
	audit := buildAuditLog(findings, time.Since(start))
	if len(findings) == 0 {
		return Result{Content: content, Audit: audit}
	}

	return Result{Content: replaceFindings(content, findings), Audit: audit}
}

// replaceFindings substitutes every occurrence of each secret in one pass,
// so markers are never rescanned. Longer secrets are tried first so a secret
// that contains another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(secretOf(sorted[i])) > len(secretOf(sorted[j]))
	})

	pairs := make([]string, 0, 2*len(sorted))
	for _, f := range sorted {
		secret := secretOf(f)
		if secret == "" {
			continue
		}
		pairs = append(pairs, secret, fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, extractPreview(secret, 4)))
	}
	if len(pairs) == 0 {
		return content
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

func secretOf(f Finding) string {
	if f.Secret != "" {
		return f.Secret
	}
	return f.Match
}

// extractPreview returns the first n bytes of s.
func extractPreview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func buildAuditLog(findings []Finding, elapsed time.Duration) AuditLog {
	redactions := make([]Redaction, 0, len(findings))
	ruleCounts := make(map[string]int)

	for _, f := range findings {
		secret := secretOf(f)
		redactions = append(redactions, Redaction{
			RuleID:      f.RuleID,
			RuleDesc:    f.RuleDesc,
			LineNumber:  f.Line,
			OriginalLen: len(secret),
			Preview:     extractPreview(secret, 4),
		})
		ruleCounts[f.RuleID]++
	}

	return AuditLog{
		Timestamp:  time.Now(),
		Redactions: redactions,
		Summary: Summary{
			TotalSecrets:     len(findings),
			UniqueRules:      len(ruleCounts),
			RuleCounts:       ruleCounts,
			ProcessingTimeMs: elapsed.Milliseconds(),
		},
	}
}
