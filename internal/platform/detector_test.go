package platform

import (
	"testing"

	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/stretchr/testify/assert"
)

func TestDetectKnownPlatforms(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		html string
		want article.PlatformTag
	}{
		{
			"wordpress generator tag",
			`<html><head><meta name="generator" content="WordPress 6.4"></head><body></body></html>`,
			article.PlatformWordPress,
		},
		{
			"wordpress asset paths",
			`<html><head><link rel="stylesheet" href="/wp-content/themes/news/style.css"></head><body></body></html>`,
			article.PlatformWordPress,
		},
		{
			"drupal generator tag",
			`<html><head><meta name="generator" content="Drupal 10 (https://www.drupal.org)"></head><body></body></html>`,
			article.PlatformDrupal,
		},
		{
			"drupal file paths",
			`<html><body><img src="/sites/default/files/hero.jpg"></body></html>`,
			article.PlatformDrupal,
		},
		{
			"joomla component url",
			`<html><body><a href="/index.php?option=com_content&view=article&id=12">Read</a></body></html>`,
			article.PlatformJoomla,
		},
		{
			"ghost assets",
			`<html><head><script src="/ghost/assets/main.js"></script></head><body></body></html>`,
			article.PlatformGhost,
		},
		{
			"squarespace cdn",
			`<html><body><img src="https://static1.squarespace.com/static/img.png"></body></html>`,
			article.PlatformSquarespace,
		},
		{
			"wix static assets",
			`<html><body><img src="https://static.wixstatic.com/media/photo.jpg"></body></html>`,
			article.PlatformWix,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.Detect(tc.html))
		})
	}
}

func TestDetectFallsBackToGeneric(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		html string
	}{
		{"hand-rolled site", `<html><head><title>Custom CMS</title></head><body><article><h1>Hi</h1></article></body></html>`},
		{"empty input", ""},
		{"plain text", "not markup at all"},
		{"unknown generator", `<html><head><meta name="generator" content="HomeGrown 1.0"></head><body></body></html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, article.PlatformGeneric, d.Detect(tc.html))
		})
	}
}

func TestDetectOrderPrefersEarlierFingerprint(t *testing.T) {
	d := NewDetector()

	// A page carrying both WordPress and Ghost markers classifies as
	// WordPress because its matcher runs first.
	html := `<html><head>
		<link href="/wp-content/style.css">
		<script src="/ghost/assets/main.js"></script>
	</head><body></body></html>`
	assert.Equal(t, article.PlatformWordPress, d.Detect(html))
}
