package platform

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"golang.org/x/net/html"
)

// Fields holds what a strategy pulled out of one page. All four fields
// are required for an article candidate.
type Fields struct {
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	CanonicalURL string    `json:"canonical_url"`
	PublishedAt  time.Time `json:"published_at"`
}

// StructuralError reports which required fields a strategy failed to
// extract. The scrape executor counts these per source and triggers
// strategy regeneration at the configured threshold.
type StructuralError struct {
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("extraction missing required fields: %s", strings.Join(e.Missing, ", "))
}

// dateLayouts are tried in order when parsing publish dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 January 2006",
	"2 January 2006",
}

var dateTokenPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Extract applies a strategy to page HTML. The returned Fields always
// carries whatever was found; the error is a *StructuralError when any
// required field is missing. pageURL backfills the canonical URL when the
// page does not declare one.
func Extract(strategy *article.ExtractionStrategy, pageHTML, pageURL string) (*Fields, error) {
	fields := &Fields{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return fields, &StructuralError{Missing: []string{"title", "body", "canonical_url", "published_at"}}
	}

	fields.Title = selectText(doc, strategy.Selectors.Title)
	fields.CanonicalURL = selectText(doc, strategy.Selectors.CanonicalURL)
	if fields.CanonicalURL == "" {
		fields.CanonicalURL = pageURL
	}
	fields.PublishedAt = selectDate(doc, strategy.Selectors.PublishedAt, pageHTML)

	if strategy.Selectors.Body != "" {
		fields.Body = normalizeBlock(doc.Find(strategy.Selectors.Body).First().Text())
	} else {
		// Generic heuristic: the largest contiguous text block on the page.
		fields.Body = largestTextBlock(doc)
	}

	missing := make([]string, 0, 4)
	if fields.Title == "" {
		missing = append(missing, "title")
	}
	if fields.Body == "" {
		missing = append(missing, "body")
	}
	if fields.CanonicalURL == "" {
		missing = append(missing, "canonical_url")
	}
	if fields.PublishedAt.IsZero() {
		missing = append(missing, "published_at")
	}
	if len(missing) > 0 {
		return fields, &StructuralError{Missing: missing}
	}
	return fields, nil
}

// selectText resolves a comma-grouped selector to its first non-empty
// value, reading the natural attribute for meta/link/time elements and
// the text content for everything else.
func selectText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	value := ""
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value = nodeValue(s)
		return value == ""
	})
	return value
}

func nodeValue(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "meta":
		content, _ := s.Attr("content")
		return strings.TrimSpace(content)
	case "link":
		href, _ := s.Attr("href")
		return strings.TrimSpace(href)
	case "time":
		if datetime, ok := s.Attr("datetime"); ok && strings.TrimSpace(datetime) != "" {
			return strings.TrimSpace(datetime)
		}
		return strings.TrimSpace(s.Text())
	default:
		return strings.TrimSpace(s.Text())
	}
}

// selectDate tries the strategy's date locators first, then falls back to
// the first date-like token anywhere in the page.
func selectDate(doc *goquery.Document, selector, pageHTML string) time.Time {
	raw := selectText(doc, selector)
	if t, ok := parseDate(raw); ok {
		return t
	}
	if token := dateTokenPattern.FindString(pageHTML); token != "" {
		if t, ok := parseDate(token); ok {
			return t
		}
	}
	return time.Time{}
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// largestTextBlock walks the parsed tree and returns the text of the
// element containing the most paragraph text. Script, style and nav
// subtrees are skipped.
func largestTextBlock(doc *goquery.Document) string {
	root := doc.Find("body")
	if root.Length() == 0 {
		return ""
	}

	best := ""
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer", "aside":
				return
			}
			text := directParagraphText(n)
			if len(text) > len(best) {
				best = text
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range root.Nodes {
		walk(n)
	}

	if best == "" {
		best = normalizeBlock(root.Text())
	}
	return best
}

// directParagraphText concatenates the text of an element's direct <p>
// children.
func directParagraphText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "p" {
			if text := normalizeBlock(nodeText(c)); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var whitespacePattern = regexp.MustCompile(`[ \t]+`)

// normalizeBlock trims each line and collapses runs of spaces, keeping
// paragraph breaks intact.
func normalizeBlock(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
