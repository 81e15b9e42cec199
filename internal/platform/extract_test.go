package platform

import (
	"strings"
	"testing"

	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genericStrategy() *article.ExtractionStrategy {
	return &article.ExtractionStrategy{
		Platform: article.PlatformGeneric,
		Selectors: article.Selectors{
			Title:        `meta[property="og:title"], title, h1`,
			Body:         "",
			PublishedAt:  `meta[property="article:published_time"], time[datetime]`,
			CanonicalURL: `link[rel="canonical"], meta[property="og:url"]`,
		},
	}
}

func TestExtractGenericHeuristics(t *testing.T) {
	page := `<html>
<head>
	<meta property="og:title" content="Immunotherapy Trial Expands">
	<meta property="og:url" content="https://health.example.org/trial-expands">
</head>
<body>
	<nav><p>Home News About Contact and lots of navigation text here</p></nav>
	<div id="content">
		<p>The phase three trial expanded to twelve additional centers this week.</p>
		<p>Investigators expect enrollment to finish by 2026-05-01 at the latest.</p>
		<p>Early results suggested a meaningful improvement in progression-free survival.</p>
	</div>
	<footer><p>Copyright notice</p></footer>
</body>
</html>`

	fields, err := Extract(genericStrategy(), page, "https://health.example.org/fallback")
	require.NoError(t, err)

	assert.Equal(t, "Immunotherapy Trial Expands", fields.Title)
	assert.Contains(t, fields.Body, "phase three trial expanded")
	assert.NotContains(t, fields.Body, "navigation text", "nav subtrees are excluded from the body heuristic")
	assert.Equal(t, "https://health.example.org/trial-expands", fields.CanonicalURL)
	assert.Equal(t, "2026-05-01", fields.PublishedAt.Format("2006-01-02"), "first date-like token backfills the publish date")
}

func TestExtractCanonicalFallsBackToPageURL(t *testing.T) {
	page := `<html><head><title>No Canonical Here</title></head>
<body><div><p>Some body text long enough to be found as the main block, 2025-11-30.</p></div></body></html>`

	fields, err := Extract(genericStrategy(), page, "https://health.example.org/page-url")
	require.NoError(t, err)
	assert.Equal(t, "https://health.example.org/page-url", fields.CanonicalURL)
}

func TestExtractReportsMissingFields(t *testing.T) {
	strategy := &article.ExtractionStrategy{
		Platform: article.PlatformWordPress,
		Selectors: article.Selectors{
			Title:        "h1.entry-title",
			Body:         "div.entry-content",
			PublishedAt:  `meta[property="article:published_time"]`,
			CanonicalURL: `link[rel="canonical"]`,
		},
	}

	// A redesigned page where none of the selectors match and no date
	// token exists.
	page := `<html><body><section class="new-layout"><span>teaser only</span></section></body></html>`

	fields, err := Extract(strategy, page, "")
	require.Error(t, err)

	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Contains(t, structural.Missing, "title")
	assert.Contains(t, structural.Missing, "body")
	assert.Contains(t, structural.Missing, "published_at")
	assert.Contains(t, structural.Missing, "canonical_url")
	require.NotNil(t, fields, "partial fields are always returned")
}

func TestExtractPartialFieldsSurviveStructuralError(t *testing.T) {
	strategy := &article.ExtractionStrategy{
		Selectors: article.Selectors{
			Title: "h1",
			Body:  "div.gone",
		},
	}
	page := `<html><body><h1>Title Survives</h1><span>nothing else</span></body></html>`

	fields, err := Extract(strategy, page, "https://example.org/x")
	require.Error(t, err)
	assert.Equal(t, "Title Survives", fields.Title)
	assert.Equal(t, "https://example.org/x", fields.CanonicalURL)
}

func TestExtractTimeElementDatetime(t *testing.T) {
	strategy := genericStrategy()
	page := `<html><head><title>Dated</title></head>
<body><time datetime="2026-01-15T08:00:00Z">January 15</time>
<div><p>Enough paragraph text to form the extracted body of this page.</p></div></body></html>`

	fields, err := Extract(strategy, page, "https://example.org/dated")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", fields.PublishedAt.Format("2006-01-02"))
}

func TestExtractPicksLargestTextBlock(t *testing.T) {
	long := strings.Repeat("A sentence about treatment outcomes. ", 20)
	page := `<html><head><title>Blocks</title></head>
<body>
	<div class="teaser"><p>Short teaser.</p></div>
	<div class="main"><p>` + long + `</p><p>Published 2026-02-02.</p></div>
</body></html>`

	fields, err := Extract(genericStrategy(), page, "https://example.org/blocks")
	require.NoError(t, err)
	assert.Contains(t, fields.Body, "treatment outcomes")
	assert.NotEqual(t, "Short teaser.", fields.Body)
}
