// Package store persists sources, extraction strategies, articles and the
// compliance audit trail. Two backends exist: an in-memory store used by
// tests and single-node runs, and a Postgres store for durable deployments.
// Both honor the same contracts, most importantly compare-and-insert
// article deduplication.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/pkg/article"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateContent is returned by InsertArticle when an article
	// with the same content hash (or canonical URL) is already stored.
	// Callers treat it as a first-class Skipped outcome, not a failure.
	ErrDuplicateContent = errors.New("store: duplicate content")

	// ErrSourceExists is returned when a source's base URL is already
	// registered.
	ErrSourceExists = errors.New("store: source already exists")
)

// SourceStore manages monitored sources.
type SourceStore interface {
	CreateSource(ctx context.Context, src *article.Source) error
	GetSource(ctx context.Context, id uuid.UUID) (*article.Source, error)
	UpdateSource(ctx context.Context, src *article.Source) error
	ListSources(ctx context.Context) ([]*article.Source, error)
	// ListSchedulable returns sources that are active and validated,
	// the only ones admissible for crawling.
	ListSchedulable(ctx context.Context) ([]*article.Source, error)
}

// StrategyStore manages extraction strategies. ReplaceStrategy is atomic:
// concurrent readers observe either the old or the new strategy, never a
// partial write.
type StrategyStore interface {
	ReplaceStrategy(ctx context.Context, strategy *article.ExtractionStrategy) error
	GetStrategy(ctx context.Context, sourceID uuid.UUID) (*article.ExtractionStrategy, error)
}

// ArticleStore persists accepted articles. InsertArticle performs the
// hash-existence check and the insert as one compare-and-insert operation,
// so two workers racing on the same content never both succeed.
type ArticleStore interface {
	InsertArticle(ctx context.Context, a *article.Article) error
	GetArticleByHash(ctx context.Context, hash string) (*article.Article, error)
	CountArticles(ctx context.Context) (int64, error)
}

// AuditStore appends immutable compliance audit entries.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *article.ComplianceAuditEntry) error
	ListAudit(ctx context.Context, sourceID uuid.UUID) ([]*article.ComplianceAuditEntry, error)
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	SourceStore
	StrategyStore
	ArticleStore
	AuditStore
	Health(ctx context.Context) error
}
