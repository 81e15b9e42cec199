package platform

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordpressArticle = `<html>
<head>
	<meta name="generator" content="WordPress 6.4">
	<link rel="canonical" href="https://news.example.org/screening-update">
	<meta property="article:published_time" content="2026-03-14T09:30:00Z">
</head>
<body>
	<article>
		<header><h1 class="entry-title">Screening Guidelines Updated</h1></header>
		<div class="entry-content">
			<p>The task force revised its screening recommendations.</p>
			<p>Annual mammograms are now advised starting at age forty.</p>
		</div>
	</article>
</body>
</html>`

func TestGenerateUsesPlatformTemplate(t *testing.T) {
	g := NewGenerator(NewDetector())
	src := &article.Source{ID: uuid.New()}

	strategy := g.Generate(src, article.PlatformWordPress, wordpressArticle)
	require.NotNil(t, strategy)

	assert.Equal(t, article.PlatformWordPress, strategy.Platform)
	assert.Equal(t, src.ID, strategy.SourceID)
	assert.Contains(t, strategy.Selectors.Title, "entry-title")
	assert.NotEqual(t, uuid.Nil, strategy.ID)
	assert.False(t, strategy.GeneratedAt.IsZero())
}

func TestGenerateFallsBackWhenTemplateMatchesNothing(t *testing.T) {
	g := NewGenerator(NewDetector())
	src := &article.Source{ID: uuid.New()}

	// WordPress tag but markup with none of the template's classes.
	sample := `<html><head><title>Custom Theme Site</title></head>
	<body><main><div class="weird-wrapper">
		<p>Body text lives in a layout the template does not know.</p>
	</div></main></body></html>`

	strategy := g.Generate(src, article.PlatformWordPress, sample)
	require.NotNil(t, strategy)
	assert.Equal(t, article.PlatformGeneric, strategy.Platform)
	assert.Empty(t, strategy.Selectors.Body, "generic body selector signals largest-text-block")
}

func TestGenerateUnknownTagDegradesToGeneric(t *testing.T) {
	g := NewGenerator(NewDetector())
	src := &article.Source{ID: uuid.New()}

	strategy := g.Generate(src, article.PlatformTag("typo3"), "")
	require.NotNil(t, strategy)
	assert.Equal(t, article.PlatformGeneric, strategy.Platform)
}

func TestDetectAndGenerate(t *testing.T) {
	g := NewGenerator(NewDetector())
	src := &article.Source{ID: uuid.New()}

	strategy := g.DetectAndGenerate(src, wordpressArticle)
	require.NotNil(t, strategy)
	assert.Equal(t, article.PlatformWordPress, strategy.Platform)

	fields, err := Extract(strategy, wordpressArticle, "https://news.example.org/screening-update")
	require.NoError(t, err)
	assert.Equal(t, "Screening Guidelines Updated", fields.Title)
	assert.Contains(t, fields.Body, "revised its screening recommendations")
	assert.Equal(t, "https://news.example.org/screening-update", fields.CanonicalURL)
	assert.Equal(t, 2026, fields.PublishedAt.Year())
}
