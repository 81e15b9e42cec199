package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Page is one fetched page, ready for extraction.
type Page struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
}

// FetcherConfig configures page fetching.
type FetcherConfig struct {
	UserAgent    string        `json:"user_agent"`
	Timeout      time.Duration `json:"timeout"`
	MaxBodySize  int64         `json:"max_body_size"`
	ContentTypes []string      `json:"content_types"`
}

// DefaultFetcherConfig returns sensible defaults.
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		UserAgent:    "NewsWatch/1.0 (+https://rosalind-labs.io/bot)",
		Timeout:      30 * time.Second,
		MaxBodySize:  10 * 1024 * 1024,
		ContentTypes: []string{"text/html", "application/xhtml+xml"},
	}
}

// Fetcher retrieves pages over HTTP with a fixed timeout. Callers are
// responsible for politeness admission before Fetch is invoked.
type Fetcher struct {
	client *http.Client
	config *FetcherConfig
}

// NewFetcher creates a fetcher.
func NewFetcher(config *FetcherConfig) *Fetcher {
	if config == nil {
		config = DefaultFetcherConfig()
	}
	return &Fetcher{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Fetch retrieves one page. Timeouts, connection errors and 5xx responses
// come back as *TransientFetchError; 4xx responses and unsupported content
// types as *PermanentFetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &PermanentFetchError{URL: pageURL, Reason: fmt.Sprintf("invalid URL: %v", err)}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransientFetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, &TransientFetchError{URL: pageURL, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientFetchError{URL: pageURL, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &PermanentFetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !f.supported(contentType) {
		return nil, &PermanentFetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("unsupported content type %q", contentType),
		}
	}

	limited := &io.LimitedReader{R: resp.Body, N: f.config.MaxBodySize}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &TransientFetchError{URL: pageURL, Err: err}
	}
	if limited.N <= 0 {
		return nil, &PermanentFetchError{URL: pageURL, Reason: "body exceeds maximum size"}
	}

	log.Debug().
		Str("url", pageURL).
		Int("status_code", resp.StatusCode).
		Int("size", len(body)).
		Msg("Page fetched")

	return &Page{
		URL:         pageURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (f *Fetcher) supported(contentType string) bool {
	mediaType := strings.ToLower(contentType)
	if idx := strings.Index(mediaType, ";"); idx != -1 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(mediaType)
	for _, supported := range f.config.ContentTypes {
		if mediaType == supported {
			return true
		}
	}
	return false
}
