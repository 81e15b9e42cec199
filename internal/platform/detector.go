// Package platform classifies a site's publishing platform from markup
// fingerprints and turns the classification into a concrete extraction
// strategy. Detection is best-effort: no recognized fingerprint degrades
// to the generic platform, never to an error.
package platform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// fingerprint pairs a platform tag with its markup matcher. Matchers run
// in order; the first that fires wins.
type fingerprint struct {
	tag   article.PlatformTag
	match func(doc *goquery.Document, html string) bool
}

// Detector fingerprints sample HTML to classify the publishing platform.
type Detector struct {
	fingerprints []fingerprint
}

// NewDetector creates a detector with the known platform fingerprints.
func NewDetector() *Detector {
	return &Detector{fingerprints: []fingerprint{
		{article.PlatformWordPress, matchWordPress},
		{article.PlatformDrupal, matchDrupal},
		{article.PlatformJoomla, matchJoomla},
		{article.PlatformGhost, matchGhost},
		{article.PlatformSquarespace, matchSquarespace},
		{article.PlatformWix, matchWix},
	}}
}

// Detect classifies the sample HTML. It never fails: unparsable input or
// an unrecognized platform both return PlatformGeneric.
func (d *Detector) Detect(sampleHTML string) article.PlatformTag {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sampleHTML))
	if err != nil {
		log.Debug().Err(err).Msg("Sample HTML not parsable, falling back to generic")
		return article.PlatformGeneric
	}

	lowered := strings.ToLower(sampleHTML)
	for _, fp := range d.fingerprints {
		if fp.match(doc, lowered) {
			log.Debug().Str("platform", string(fp.tag)).Msg("Platform fingerprint matched")
			return fp.tag
		}
	}
	return article.PlatformGeneric
}

// generatorContains checks the meta generator tag for a marker.
func generatorContains(doc *goquery.Document, marker string) bool {
	found := false
	doc.Find(`meta[name="generator"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content, _ := s.Attr("content")
		if strings.Contains(strings.ToLower(content), marker) {
			found = true
			return false
		}
		return true
	})
	return found
}

func matchWordPress(doc *goquery.Document, html string) bool {
	if generatorContains(doc, "wordpress") {
		return true
	}
	return strings.Contains(html, "/wp-content/") ||
		strings.Contains(html, "/wp-json/") ||
		strings.Contains(html, "/wp-includes/")
}

func matchDrupal(doc *goquery.Document, html string) bool {
	if generatorContains(doc, "drupal") {
		return true
	}
	return strings.Contains(html, "/sites/default/files/") ||
		strings.Contains(html, "drupal-settings-json")
}

func matchJoomla(doc *goquery.Document, html string) bool {
	if generatorContains(doc, "joomla") {
		return true
	}
	return strings.Contains(html, "/components/com_content/") ||
		strings.Contains(html, "option=com_content")
}

func matchGhost(doc *goquery.Document, html string) bool {
	if generatorContains(doc, "ghost") {
		return true
	}
	return strings.Contains(html, "/ghost/assets/") ||
		strings.Contains(html, "ghost-url")
}

func matchSquarespace(doc *goquery.Document, html string) bool {
	if generatorContains(doc, "squarespace") {
		return true
	}
	return strings.Contains(html, "static1.squarespace.com") ||
		strings.Contains(html, "squarespace-cdn.com")
}

func matchWix(doc *goquery.Document, html string) bool {
	if generatorContains(doc, "wix.com") {
		return true
	}
	return strings.Contains(html, "wixstatic.com") ||
		strings.Contains(html, "wix-code")
}
