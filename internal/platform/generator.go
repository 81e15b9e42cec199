package platform

import (
	"time"

	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// selectorTemplates maps each known platform to the selector conventions
// of its default article markup. A pure lookup table: templates are
// immutable values, copied into every generated strategy.
var selectorTemplates = map[article.PlatformTag]article.Selectors{
	article.PlatformWordPress: {
		Title:        "h1.entry-title, h1.post-title, article header h1",
		Body:         "div.entry-content, article .post-content",
		PublishedAt:  `meta[property="article:published_time"], time.entry-date, time[datetime]`,
		CanonicalURL: `link[rel="canonical"]`,
	},
	article.PlatformDrupal: {
		Title:        "h1.page-title, article h1, h1.node-title",
		Body:         "div.node__content, article .field--name-body, div.content",
		PublishedAt:  `meta[property="article:published_time"], time[datetime], span.date-display-single`,
		CanonicalURL: `link[rel="canonical"]`,
	},
	article.PlatformJoomla: {
		Title:        "h1.article-title, div.item-page h1, h2[itemprop=headline]",
		Body:         "div.item-page div[itemprop=articleBody], section.article-content",
		PublishedAt:  `time[itemprop="datePublished"], dd.published time, time[datetime]`,
		CanonicalURL: `link[rel="canonical"]`,
	},
	article.PlatformGhost: {
		Title:        "h1.article-title, h1.post-full-title, article header h1",
		Body:         "section.gh-content, section.post-full-content, article .post-content",
		PublishedAt:  `meta[property="article:published_time"], time.byline-meta-date, time[datetime]`,
		CanonicalURL: `link[rel="canonical"]`,
	},
	article.PlatformSquarespace: {
		Title:        "h1.entry-title, h1.blog-item-title, article h1",
		Body:         "div.sqs-html-content, article .entry-content",
		PublishedAt:  `meta[property="article:published_time"], time.dt-published, time[datetime]`,
		CanonicalURL: `link[rel="canonical"]`,
	},
	article.PlatformWix: {
		Title:        `h1[data-hook="post-title"], article h1`,
		Body:         `div[data-hook="post-description"], article section`,
		PublishedAt:  `span[data-hook="time-ago"], meta[property="article:published_time"], time[datetime]`,
		CanonicalURL: `link[rel="canonical"]`,
	},
}

// genericSelectors is the heuristic fallback: OpenGraph and document
// metadata for title/date/URL, and an empty body selector which tells the
// extractor to take the largest contiguous text block.
var genericSelectors = article.Selectors{
	Title:        `meta[property="og:title"], title, h1`,
	Body:         "",
	PublishedAt:  `meta[property="article:published_time"], meta[name="publish_date"], meta[name="date"], time[datetime]`,
	CanonicalURL: `link[rel="canonical"], meta[property="og:url"]`,
}

// Generator maps a detected platform to a concrete extraction strategy.
// It never fetches pages; callers hand it representative HTML.
type Generator struct {
	detector *Detector
}

// NewGenerator creates a strategy generator.
func NewGenerator(detector *Detector) *Generator {
	return &Generator{detector: detector}
}

// Generate produces the extraction strategy for a source. For a known
// platform the selector template is verified against the sample page; a
// template that extracts nothing usable falls back to the generic
// heuristics rather than shipping a dead strategy.
func (g *Generator) Generate(src *article.Source, tag article.PlatformTag, sampleHTML string) *article.ExtractionStrategy {
	selectors, known := selectorTemplates[tag]
	if !known {
		tag = article.PlatformGeneric
		selectors = genericSelectors
	}

	strategy := &article.ExtractionStrategy{
		ID:          uuid.New(),
		SourceID:    src.ID,
		Platform:    tag,
		Selectors:   selectors,
		GeneratedAt: time.Now(),
	}

	if known && sampleHTML != "" && !usable(strategy, sampleHTML) {
		log.Info().
			Str("source_id", src.ID.String()).
			Str("platform", string(tag)).
			Msg("Platform template does not match sample page, using generic heuristics")
		strategy.Platform = article.PlatformGeneric
		strategy.Selectors = genericSelectors
	}

	return strategy
}

// DetectAndGenerate runs detection and generation in one step.
func (g *Generator) DetectAndGenerate(src *article.Source, sampleHTML string) *article.ExtractionStrategy {
	tag := g.detector.Detect(sampleHTML)
	return g.Generate(src, tag, sampleHTML)
}

// usable reports whether the strategy pulls at least a title and a body
// out of the sample page.
func usable(strategy *article.ExtractionStrategy, sampleHTML string) bool {
	fields, err := Extract(strategy, sampleHTML, "")
	if err != nil {
		return false
	}
	return fields.Title != "" && fields.Body != ""
}
