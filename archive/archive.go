// Package archive discovers and extracts articles from the news site's
// per-date archive pages.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	// DefaultBaseURL is the news site whose daily archive is scraped.
	DefaultBaseURL = "https://english.newsfirst.lk"

	defaultUserAgent     = "Mozilla/5.0 (compatible; newsfirst-telegram-bot/1.0)"
	defaultMaxExcerptLen = 3500
	maxExcerptParagraphs = 4
	minParagraphRunes    = 30
)

// Article is the extracted content of one archive link.
type Article struct {
	URL       string
	Title     string
	Excerpt   string
	Published string
}

// Fetcher retrieves archive listings and article pages.
type Fetcher struct {
	httpClient    *http.Client
	baseURL       string
	userAgent     string
	maxExcerptLen int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL sets the site base URL (also used for testing).
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		f.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxExcerptLength bounds the excerpt length in runes.
func WithMaxExcerptLength(n int) Option {
	return func(f *Fetcher) {
		f.maxExcerptLen = n
	}
}

// NewFetcher creates an archive fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		baseURL:       DefaultBaseURL,
		userAgent:     defaultUserAgent,
		maxExcerptLen: defaultMaxExcerptLen,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ArchiveURL returns the listing page URL for one date.
func (f *Fetcher) ArchiveURL(date time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d", f.baseURL, date.Year(), date.Month(), date.Day())
}

// Discover fetches the archive page for the date and returns the article
// URLs published that day, deduplicated and sorted.
func (f *Fetcher) Discover(ctx context.Context, date time.Time) ([]string, error) {
	archiveURL := f.ArchiveURL(date)
	body, err := f.get(ctx, archiveURL)
	if err != nil {
		return nil, fmt.Errorf("fetch archive page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse archive page: %w", err)
	}

	base, err := url.Parse(archiveURL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}

	// Article links live under the date path, e.g. /2026/01/13/slug.
	prefix := archiveURL + "/"
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		full := base.ResolveReference(ref).String()
		if strings.HasPrefix(full, prefix) && !seen[full] {
			seen[full] = true
			links = append(links, full)
		}
	})

	sort.Strings(links)
	return links, nil
}

// Fetch downloads one article page and extracts its title, a bounded body
// excerpt, and a best-effort published time.
func (f *Fetcher) Fetch(ctx context.Context, articleURL string) (*Article, error) {
	parsed, err := url.Parse(articleURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid article URL: %s", articleURL)
	}

	body, err := f.get(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	content, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	title := strings.TrimSpace(content.Title)
	if title == "" {
		title = articleURL
	}

	published := "Unknown"
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if raw := extractPublished(doc); raw != "" {
			published = normalizePublished(raw)
		}
	}

	return &Article{
		URL:       articleURL,
		Title:     title,
		Excerpt:   f.excerpt(content.TextContent),
		Published: published,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// excerpt keeps the leading substantial paragraphs of the extracted text,
// skipping short boilerplate lines, bounded to a Telegram-safe length.
func (f *Fetcher) excerpt(text string) string {
	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) < minParagraphRunes {
			continue
		}
		paragraphs = append(paragraphs, line)
		if len(paragraphs) == maxExcerptParagraphs {
			break
		}
	}
	if len(paragraphs) == 0 {
		return "Content not clearly detected from page."
	}

	out := strings.Join(paragraphs, "\n\n")
	runes := []rune(out)
	if len(runes) > f.maxExcerptLen {
		out = strings.TrimSpace(string(runes[:f.maxExcerptLen])) + "..."
	}
	return out
}
