package site

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxPageBytes = 2 << 20
	userAgent           = "Mozilla/5.0 (compatible; search-term-analyzer/1.0)"
)

// Fetcher downloads a web page and extracts its readable text.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher returns a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   defaultMaxPageBytes,
	}
}

// ReadText fetches pageURL and returns its title and main text with whitespace collapsed.
func (f *Fetcher) ReadText(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, f.maxBytes), parsed)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	title := strings.TrimSpace(article.Title)
	if title != "" && !strings.HasPrefix(text, title) {
		text = title + ". " + text
	}
	return text, nil
}
