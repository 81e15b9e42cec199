// Package compliance decides whether a source may legally and ethically be
// crawled. A fixed set of weighted checks produces a score in [0,1];
// robots.txt disallow and a crawl delay below the floor are hard gates
// that fail validation regardless of the score.
package compliance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// Violation describes one failed check in human-readable terms. Every
// violation carries a specific remediation suggestion, never a generic
// failure message.
type Violation struct {
	Check          string `json:"check"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// ValidationResult is the outcome of one compliance evaluation.
type ValidationResult struct {
	SourceID   string        `json:"source_id"`
	Score      float64       `json:"score"`
	Passed     bool          `json:"passed"`
	Violations []Violation   `json:"violations"`
	Robots     *RobotsReport `json:"robots,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Messages returns the violation messages only, for callers that surface a
// flat list.
func (vr *ValidationResult) Messages() []string {
	msgs := make([]string, 0, len(vr.Violations))
	for _, v := range vr.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// Weights distributes the aggregate score across the checks. The weights
// must sum to 1.0.
type Weights struct {
	Robots       float64 `json:"robots"`
	CrawlDelay   float64 `json:"crawl_delay"`
	TermsURL     float64 `json:"terms_url"`
	LegalContact float64 `json:"legal_contact"`
	FairUse      float64 `json:"fair_use"`
}

// ValidatorConfig configures validation behavior.
type ValidatorConfig struct {
	MinScore     float64       `json:"min_score"`
	Weights      Weights       `json:"weights"`
	FetchTimeout time.Duration `json:"fetch_timeout"`
	// VerifyTermsReachable additionally fetches the ToS URL; an
	// unreachable document fails the check rather than aborting the run.
	VerifyTermsReachable bool `json:"verify_terms_reachable"`
}

// DefaultValidatorConfig returns the default check weights and threshold.
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MinScore: 0.5,
		Weights: Weights{
			Robots:       0.30,
			CrawlDelay:   0.20,
			TermsURL:     0.20,
			LegalContact: 0.15,
			FairUse:      0.15,
		},
		FetchTimeout:         30 * time.Second,
		VerifyTermsReachable: true,
	}
}

// Validator evaluates sources against the compliance checks and appends
// one audit entry per evaluation.
type Validator struct {
	robots *RobotsChecker
	audit  store.AuditStore
	client *http.Client
	config *ValidatorConfig
}

// NewValidator creates a validator. The audit store may not be nil; every
// evaluation is recorded.
func NewValidator(robots *RobotsChecker, audit store.AuditStore, config *ValidatorConfig) *Validator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	return &Validator{
		robots: robots,
		audit:  audit,
		client: &http.Client{Timeout: config.FetchTimeout},
		config: config,
	}
}

// ClearExpiredRobots drops stale entries from the robots.txt cache and
// returns how many were removed.
func (v *Validator) ClearExpiredRobots() int {
	return v.robots.ClearExpired()
}

// Validate runs every check, computes the weighted score and applies the
// hard gates. Network failures while fetching policy documents count as
// failed checks, never as errors that abort the source. The action
// distinguishes first-time validation from periodic revalidation in the
// audit trail.
func (v *Validator) Validate(ctx context.Context, src *article.Source, action article.AuditAction, actor string) (*ValidationResult, error) {
	result := &ValidationResult{
		SourceID:  src.ID.String(),
		CheckedAt: time.Now(),
	}

	score := 0.0
	hardFail := false

	// robots.txt reachable and scraping permitted.
	robots, err := v.robots.Check(ctx, src.BaseURL)
	if err != nil {
		// Only malformed base URLs end up here; treat as a failed check.
		result.Violations = append(result.Violations, Violation{
			Check:          "robots",
			Message:        fmt.Sprintf("robots.txt could not be evaluated: %v", err),
			Recommendation: "Verify the source base URL is a well-formed http(s) URL",
		})
	} else {
		result.Robots = robots
		switch {
		case !robots.Reachable:
			// Not a hard gate: an unreachable policy is a failed check,
			// not an explicit prohibition.
			result.Violations = append(result.Violations, Violation{
				Check:          "robots",
				Message:        "robots.txt is unreachable and cannot be assumed permissive",
				Recommendation: "Confirm the site serves /robots.txt and retry validation",
			})
		case !robots.Allowed:
			// Explicit disallow is an automatic fail regardless of score.
			hardFail = true
			result.Violations = append(result.Violations, Violation{
				Check:          "robots",
				Message:        "robots.txt disallows crawling the target paths",
				Recommendation: "Request written permission from the site operator or remove the source",
			})
		default:
			score += v.config.Weights.Robots
		}
	}

	// Crawl delay at or above the hard floor.
	if src.CrawlDelay() < article.MinCrawlDelay {
		hardFail = true
		result.Violations = append(result.Violations, Violation{
			Check:          "crawl_delay",
			Message:        "crawl delay below minimum",
			Recommendation: fmt.Sprintf("Set crawl_delay_seconds to at least %d", int(article.MinCrawlDelay.Seconds())),
		})
	} else {
		score += v.config.Weights.CrawlDelay
		// robots.txt may demand an even longer delay; honor it.
		if result.Robots != nil && result.Robots.CrawlDelay > src.CrawlDelay() {
			log.Info().
				Str("source_id", src.ID.String()).
				Dur("robots_delay", result.Robots.CrawlDelay).
				Dur("configured_delay", src.CrawlDelay()).
				Msg("robots.txt requests a longer crawl delay than configured")
		}
	}

	// Terms-of-service URL present (and reachable when verification is on).
	if v.checkTerms(ctx, src, result) {
		score += v.config.Weights.TermsURL
	}

	// Legal contact address present.
	if strings.TrimSpace(src.LegalContact) == "" {
		result.Violations = append(result.Violations, Violation{
			Check:          "legal_contact",
			Message:        "no legal contact address on record",
			Recommendation: "Record a contact address for takedown and licensing requests",
		})
	} else {
		score += v.config.Weights.LegalContact
	}

	// Fair-use justification present and non-empty.
	if strings.TrimSpace(src.FairUseJustification) == "" {
		result.Violations = append(result.Violations, Violation{
			Check:          "fair_use",
			Message:        "fair-use justification is missing",
			Recommendation: "Document why monitoring this source qualifies as fair use",
		})
	} else {
		score += v.config.Weights.FairUse
	}

	result.Score = score
	result.Passed = !hardFail && score >= v.config.MinScore

	status := article.StatusValidated
	if !result.Passed {
		status = article.StatusFailed
	}

	entry := &article.ComplianceAuditEntry{
		SourceID:        src.ID,
		Action:          action,
		ResultingStatus: status,
		ScoreBefore:     src.ComplianceScore,
		ScoreAfter:      result.Score,
		Actor:           actor,
	}
	if err := v.audit.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	log.Info().
		Str("source_id", src.ID.String()).
		Str("action", string(action)).
		Float64("score", result.Score).
		Bool("passed", result.Passed).
		Int("violations", len(result.Violations)).
		Msg("Compliance validation completed")

	return result, nil
}

func (v *Validator) checkTerms(ctx context.Context, src *article.Source, result *ValidationResult) bool {
	if strings.TrimSpace(src.TermsURL) == "" {
		result.Violations = append(result.Violations, Violation{
			Check:          "terms_url",
			Message:        "no terms-of-service URL on record",
			Recommendation: "Locate the site's terms of service and record its URL",
		})
		return false
	}
	if !v.config.VerifyTermsReachable {
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.TermsURL, nil)
	if err != nil {
		result.Violations = append(result.Violations, Violation{
			Check:          "terms_url",
			Message:        fmt.Sprintf("terms-of-service URL is malformed: %v", err),
			Recommendation: "Record a valid http(s) URL for the terms of service",
		})
		return false
	}

	resp, err := v.client.Do(req)
	if err != nil {
		result.Violations = append(result.Violations, Violation{
			Check:          "terms_url",
			Message:        "terms-of-service document is unreachable",
			Recommendation: "Confirm the terms URL responds and retry validation",
		})
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		result.Violations = append(result.Violations, Violation{
			Check:          "terms_url",
			Message:        fmt.Sprintf("terms-of-service URL returned status %d", resp.StatusCode),
			Recommendation: "Update the terms URL to one that resolves",
		})
		return false
	}
	return true
}
