package secrets

import (
	"fmt"
	"regexp"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is a detected secret.
type Finding struct {
	RuleID   string // Gitleaks rule ID (e.g., "github-pat")
	RuleDesc string
	Line     int
	Secret   string // the secret value alone
	Match    string // the full rule match, which may include surrounding context
}

// Scrubber detects and redacts secrets. Building the Gitleaks rule set is
// expensive, so a Scrubber is created once per run and reused per issue.
type Scrubber struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewScrubber creates a Scrubber with the default Gitleaks rules plus an
// optional allowlist.
func NewScrubber(allowlist *Allowlist) (*Scrubber, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}

	if allowlist != nil && (len(allowlist.Regexes) > 0 || len(allowlist.StopWords) > 0) {
		if err := applyAllowlist(&detector.Config, allowlist); err != nil {
			return nil, err
		}
	}

	return &Scrubber{detector: detector}, nil
}

// Detect scans content for secrets.
func (s *Scrubber) Detect(content string) []Finding {
	s.mu.Lock()
	found := s.detector.DetectString(content)
	s.mu.Unlock()

	result := make([]Finding, 0, len(found))
	for _, f := range found {
		result = append(result, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			Secret:   f.Secret,
			Match:    f.Match,
		})
	}
	return result
}

// applyAllowlist adds a global allowlist to the Gitleaks config.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) error {
	global := &gitleaksConfig.Allowlist{
		Description: "issuevec allowlist",
		StopWords:   allowlist.StopWords,
	}

	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRegex, pattern, err)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}

	cfg.Allowlists = append(cfg.Allowlists, global)
	return nil
}
