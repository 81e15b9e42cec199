package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// PostgresStore is the durable Store backend. Article deduplication relies
// on unique indexes over content_hash and canonical_url: the insert uses
// ON CONFLICT DO NOTHING, so the losing side of a concurrent race simply
// affects zero rows and is reported as ErrDuplicateContent.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

// EnsureSchema creates the tables and unique indexes the store depends on.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			base_url TEXT NOT NULL UNIQUE,
			language TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT FALSE,
			crawl_delay_seconds INT NOT NULL DEFAULT 2,
			robots_url TEXT NOT NULL DEFAULT '',
			terms_url TEXT NOT NULL DEFAULT '',
			legal_contact TEXT NOT NULL DEFAULT '',
			fair_use_justification TEXT NOT NULL DEFAULT '',
			compliance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_compliance_check TIMESTAMPTZ,
			validation_status TEXT NOT NULL DEFAULT 'pending',
			strategy_id UUID,
			consecutive_extraction_failures INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS extraction_strategies (
			id UUID PRIMARY KEY,
			source_id UUID NOT NULL UNIQUE REFERENCES sources(id),
			platform TEXT NOT NULL,
			title_selector TEXT NOT NULL,
			body_selector TEXT NOT NULL,
			published_at_selector TEXT NOT NULL,
			canonical_url_selector TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id UUID PRIMARY KEY,
			source_id UUID NOT NULL REFERENCES sources(id),
			canonical_url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS compliance_audit (
			id UUID PRIMARY KEY,
			source_id UUID NOT NULL,
			action TEXT NOT NULL,
			resulting_status TEXT NOT NULL,
			score_before DOUBLE PRECISION NOT NULL,
			score_after DOUBLE PRECISION NOT NULL,
			actor TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	log.Debug().Msg("Database schema ensured")
	return nil
}

func (ps *PostgresStore) CreateSource(ctx context.Context, src *article.Source) error {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	now := time.Now()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	tag, err := ps.pool.Exec(ctx, `
		INSERT INTO sources (
			id, name, base_url, language, country, active,
			crawl_delay_seconds, robots_url, terms_url, legal_contact,
			fair_use_justification, compliance_score, last_compliance_check,
			validation_status, strategy_id, consecutive_extraction_failures,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (base_url) DO NOTHING`,
		src.ID, src.Name, src.BaseURL, src.Language, src.Country, src.Active,
		src.CrawlDelaySeconds, src.RobotsURL, src.TermsURL, src.LegalContact,
		src.FairUseJustification, src.ComplianceScore, nullableTime(src.LastComplianceCheck),
		src.ValidationStatus, src.StrategyID, src.ConsecutiveExtractionFailures,
		src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceExists
	}
	return nil
}

const sourceColumns = `
	id, name, base_url, language, country, active,
	crawl_delay_seconds, robots_url, terms_url, legal_contact,
	fair_use_justification, compliance_score, last_compliance_check,
	validation_status, strategy_id, consecutive_extraction_failures,
	created_at, updated_at`

func (ps *PostgresStore) GetSource(ctx context.Context, id uuid.UUID) (*article.Source, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return scanSource(row)
}

func (ps *PostgresStore) UpdateSource(ctx context.Context, src *article.Source) error {
	src.UpdatedAt = time.Now()

	tag, err := ps.pool.Exec(ctx, `
		UPDATE sources SET
			name = $2, base_url = $3, language = $4, country = $5, active = $6,
			crawl_delay_seconds = $7, robots_url = $8, terms_url = $9,
			legal_contact = $10, fair_use_justification = $11,
			compliance_score = $12, last_compliance_check = $13,
			validation_status = $14, strategy_id = $15,
			consecutive_extraction_failures = $16, updated_at = $17
		WHERE id = $1`,
		src.ID, src.Name, src.BaseURL, src.Language, src.Country, src.Active,
		src.CrawlDelaySeconds, src.RobotsURL, src.TermsURL, src.LegalContact,
		src.FairUseJustification, src.ComplianceScore, nullableTime(src.LastComplianceCheck),
		src.ValidationStatus, src.StrategyID, src.ConsecutiveExtractionFailures,
		src.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) ListSources(ctx context.Context) ([]*article.Source, error) {
	return ps.querySources(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY created_at`)
}

func (ps *PostgresStore) ListSchedulable(ctx context.Context) ([]*article.Source, error) {
	return ps.querySources(ctx,
		`SELECT `+sourceColumns+` FROM sources
		 WHERE active AND validation_status = 'validated'
		 ORDER BY created_at`)
}

func (ps *PostgresStore) querySources(ctx context.Context, query string, args ...any) ([]*article.Source, error) {
	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := make([]*article.Source, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// ReplaceStrategy upserts the strategy row keyed by source_id in a single
// statement, so the replacement is atomic for concurrent readers.
func (ps *PostgresStore) ReplaceStrategy(ctx context.Context, strategy *article.ExtractionStrategy) error {
	if strategy.ID == uuid.Nil {
		strategy.ID = uuid.New()
	}
	if strategy.GeneratedAt.IsZero() {
		strategy.GeneratedAt = time.Now()
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO extraction_strategies (
			id, source_id, platform, title_selector, body_selector,
			published_at_selector, canonical_url_selector, generated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (source_id) DO UPDATE SET
			id = EXCLUDED.id,
			platform = EXCLUDED.platform,
			title_selector = EXCLUDED.title_selector,
			body_selector = EXCLUDED.body_selector,
			published_at_selector = EXCLUDED.published_at_selector,
			canonical_url_selector = EXCLUDED.canonical_url_selector,
			generated_at = EXCLUDED.generated_at`,
		strategy.ID, strategy.SourceID, strategy.Platform,
		strategy.Selectors.Title, strategy.Selectors.Body,
		strategy.Selectors.PublishedAt, strategy.Selectors.CanonicalURL,
		strategy.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to replace strategy: %w", err)
	}

	_, err = ps.pool.Exec(ctx,
		`UPDATE sources SET strategy_id = $2, updated_at = now() WHERE id = $1`,
		strategy.SourceID, strategy.ID)
	if err != nil {
		return fmt.Errorf("failed to link strategy to source: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetStrategy(ctx context.Context, sourceID uuid.UUID) (*article.ExtractionStrategy, error) {
	var s article.ExtractionStrategy
	err := ps.pool.QueryRow(ctx, `
		SELECT id, source_id, platform, title_selector, body_selector,
		       published_at_selector, canonical_url_selector, generated_at
		FROM extraction_strategies WHERE source_id = $1`, sourceID).Scan(
		&s.ID, &s.SourceID, &s.Platform,
		&s.Selectors.Title, &s.Selectors.Body,
		&s.Selectors.PublishedAt, &s.Selectors.CanonicalURL,
		&s.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	return &s, nil
}

// InsertArticle relies on the unique indexes for the compare-and-insert
// guarantee: a conflicting hash or URL affects zero rows.
func (ps *PostgresStore) InsertArticle(ctx context.Context, a *article.Article) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	tag, err := ps.pool.Exec(ctx, `
		INSERT INTO articles (
			id, source_id, canonical_url, title, body,
			published_at, content_hash, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT DO NOTHING`,
		a.ID, a.SourceID, a.CanonicalURL, a.Title, a.Body,
		a.PublishedAt, a.ContentHash, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateContent
	}
	return nil
}

func (ps *PostgresStore) GetArticleByHash(ctx context.Context, hash string) (*article.Article, error) {
	var a article.Article
	err := ps.pool.QueryRow(ctx, `
		SELECT id, source_id, canonical_url, title, body,
		       published_at, content_hash, created_at
		FROM articles WHERE content_hash = $1`, hash).Scan(
		&a.ID, &a.SourceID, &a.CanonicalURL, &a.Title, &a.Body,
		&a.PublishedAt, &a.ContentHash, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &a, nil
}

func (ps *PostgresStore) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	if err := ps.pool.QueryRow(ctx, `SELECT count(*) FROM articles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func (ps *PostgresStore) AppendAudit(ctx context.Context, entry *article.ComplianceAuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO compliance_audit (
			id, source_id, action, resulting_status,
			score_before, score_after, actor, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.SourceID, entry.Action, entry.ResultingStatus,
		entry.ScoreBefore, entry.ScoreAfter, entry.Actor, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (ps *PostgresStore) ListAudit(ctx context.Context, sourceID uuid.UUID) ([]*article.ComplianceAuditEntry, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, source_id, action, resulting_status,
		       score_before, score_after, actor, created_at
		FROM compliance_audit WHERE source_id = $1 ORDER BY created_at`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*article.ComplianceAuditEntry, 0)
	for rows.Next() {
		var e article.ComplianceAuditEntry
		if err := rows.Scan(
			&e.ID, &e.SourceID, &e.Action, &e.ResultingStatus,
			&e.ScoreBefore, &e.ScoreAfter, &e.Actor, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (ps *PostgresStore) Health(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*article.Source, error) {
	var src article.Source
	var lastCheck *time.Time
	err := row.Scan(
		&src.ID, &src.Name, &src.BaseURL, &src.Language, &src.Country, &src.Active,
		&src.CrawlDelaySeconds, &src.RobotsURL, &src.TermsURL, &src.LegalContact,
		&src.FairUseJustification, &src.ComplianceScore, &lastCheck,
		&src.ValidationStatus, &src.StrategyID, &src.ConsecutiveExtractionFailures,
		&src.CreatedAt, &src.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	if lastCheck != nil {
		src.LastComplianceCheck = *lastCheck
	}
	return &src, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
