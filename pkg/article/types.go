// Package article holds the domain types shared by the compliance,
// scraping and storage layers: monitored sources, extraction strategies,
// candidate articles and the compliance audit trail.
package article

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ValidationStatus tracks where a source stands in its compliance lifecycle.
type ValidationStatus string

const (
	StatusPending   ValidationStatus = "pending"
	StatusValidated ValidationStatus = "validated"
	StatusFailed    ValidationStatus = "failed"
)

// PlatformTag identifies a detected publishing platform. Detection that
// matches nothing degrades to PlatformGeneric, never to an error.
type PlatformTag string

const (
	PlatformWordPress   PlatformTag = "wordpress"
	PlatformDrupal      PlatformTag = "drupal"
	PlatformJoomla      PlatformTag = "joomla"
	PlatformGhost       PlatformTag = "ghost"
	PlatformSquarespace PlatformTag = "squarespace"
	PlatformWix         PlatformTag = "wix"
	PlatformGeneric     PlatformTag = "generic"
)

// MinCrawlDelay is the hard lower bound for a source's crawl delay.
// Sources below it never validate, whatever their aggregate score.
const MinCrawlDelay = 2 * time.Second

// Source is a monitored news site.
type Source struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	BaseURL  string    `json:"base_url"`
	Language string    `json:"language"`
	Country  string    `json:"country"`
	Active   bool      `json:"active"`

	CrawlDelaySeconds int `json:"crawl_delay_seconds"`

	// Compliance metadata supplied at onboarding.
	RobotsURL            string `json:"robots_url"`
	TermsURL             string `json:"terms_url"`
	LegalContact         string `json:"legal_contact"`
	FairUseJustification string `json:"fair_use_justification"`

	ComplianceScore     float64          `json:"compliance_score"`
	LastComplianceCheck time.Time        `json:"last_compliance_check"`
	ValidationStatus    ValidationStatus `json:"validation_status"`

	// StrategyID is nil until an extraction strategy has been generated.
	StrategyID *uuid.UUID `json:"strategy_id,omitempty"`

	// ConsecutiveExtractionFailures counts structural extraction failures
	// since the last successful extraction. Crossing the configured
	// threshold triggers strategy regeneration.
	ConsecutiveExtractionFailures int `json:"consecutive_extraction_failures"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CrawlDelay returns the source's crawl delay as a duration.
func (s *Source) CrawlDelay() time.Duration {
	return time.Duration(s.CrawlDelaySeconds) * time.Second
}

// Domain returns the host portion of the source's base URL.
func (s *Source) Domain() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Schedulable reports whether the source may be admitted for crawling.
// Only active, validated sources are ever scheduled.
func (s *Source) Schedulable() bool {
	return s.Active && s.ValidationStatus == StatusValidated
}

// Validate checks the fields an onboarding request must carry.
func (s *Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("source base URL cannot be empty")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL must have a host")
	}
	return nil
}

// Selectors is the locator set an extraction strategy uses to pull the
// required article fields out of a page.
type Selectors struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	PublishedAt  string `json:"published_at"`
	CanonicalURL string `json:"canonical_url"`
}

// ExtractionStrategy is a reusable extraction recipe bound to one source.
// Exactly one strategy exists per source; replacement is atomic so readers
// never observe a half-updated strategy.
type ExtractionStrategy struct {
	ID          uuid.UUID   `json:"id"`
	SourceID    uuid.UUID   `json:"source_id"`
	Platform    PlatformTag `json:"platform"`
	Selectors   Selectors   `json:"selectors"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Article is one piece of extracted content before the downstream
// NLP hand-off. ContentHash is derived, never user-settable, and unique
// across the corpus.
type Article struct {
	ID           uuid.UUID `json:"id"`
	SourceID     uuid.UUID `json:"source_id"`
	CanonicalURL string    `json:"canonical_url"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	PublishedAt  time.Time `json:"published_at"`
	ContentHash  string    `json:"content_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditAction names the compliance event an audit entry records.
type AuditAction string

const (
	AuditValidate   AuditAction = "validate"
	AuditRevalidate AuditAction = "revalidate"
	AuditDisable    AuditAction = "disable"
)

// ComplianceAuditEntry is an immutable record of one validation event.
// Entries are append-only; they are never mutated or deleted.
type ComplianceAuditEntry struct {
	ID              uuid.UUID        `json:"id"`
	SourceID        uuid.UUID        `json:"source_id"`
	Action          AuditAction      `json:"action"`
	ResultingStatus ValidationStatus `json:"resulting_status"`
	ScoreBefore     float64          `json:"score_before"`
	ScoreAfter      float64          `json:"score_after"`
	Actor           string           `json:"actor"`
	CreatedAt       time.Time        `json:"created_at"`
}
