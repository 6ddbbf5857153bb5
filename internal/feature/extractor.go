// Package feature derives the risk features used to screen a URL before it
// is admitted into the directory. Lexical features are pure; domain age and
// content features depend on external network state and degrade to absent
// fields instead of failing.
package feature

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/pavelzhurbin/shorturl/internal/models"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultWhoisTimeout = 10 * time.Second
)

type whoisClient interface {
	Whois(domain string, servers ...string) (string, error)
}

// Extractor computes a feature snapshot for a target URL.
type Extractor struct {
	logger     *slog.Logger
	httpClient *http.Client
	whois      whoisClient
}

type Option func(*Extractor)

func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) {
		e.httpClient = c
	}
}

func WithWhoisClient(c whoisClient) Option {
	return func(e *Extractor) {
		e.whois = c
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.httpClient.Timeout = d
	}
}

func WithWhoisTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.whois = whois.NewClient().SetTimeout(d)
	}
}

func New(logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		logger:     logger,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		whois:      whois.NewClient().SetTimeout(defaultWhoisTimeout),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract computes the feature snapshot for originalURL. The lexical fields
// are always set. The domain age and content fields are nil when the
// corresponding network call fails or times out; such degradation is logged
// and never surfaces as an error.
func (e *Extractor) Extract(ctx context.Context, originalURL string) models.FeatureSnapshot {
	snapshot := models.FeatureSnapshot{
		URLLength:        int64(len(originalURL)),
		SpecialCharCount: countSpecialChars(originalURL),
	}

	snapshot.DomainAgeDays = e.domainAgeDays(originalURL)

	wordCount, specialCharCount := e.contentFeatures(ctx, originalURL)
	snapshot.ContentWordCount = wordCount
	snapshot.ContentSpecialCharCount = specialCharCount

	return snapshot
}

func (e *Extractor) domainAgeDays(originalURL string) *int64 {
	u, err := url.Parse(originalURL)
	if err != nil || u.Hostname() == "" {
		e.logger.Warn("failed to determine domain for whois lookup", slog.Any("err", err))
		return nil
	}

	raw, err := e.whois.Whois(u.Hostname())
	if err != nil {
		e.logger.Warn("whois lookup failed", slog.String("domain", u.Hostname()), slog.Any("err", err))
		return nil
	}

	info, err := whoisparser.Parse(raw)
	if err != nil || info.Domain == nil || info.Domain.CreatedDateInTime == nil {
		e.logger.Warn("failed to parse whois creation date", slog.String("domain", u.Hostname()), slog.Any("err", err))
		return nil
	}

	age := int64(time.Since(*info.Domain.CreatedDateInTime).Hours() / 24)
	if age < 0 {
		age = 0
	}

	return &age
}

func (e *Extractor) contentFeatures(ctx context.Context, originalURL string) (*int64, *int64) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, originalURL, nil)
	if err != nil {
		e.logger.Warn("failed to build content fetch request", slog.Any("err", err))
		return nil, nil
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("content fetch failed", slog.String("url", originalURL), slog.Any("err", err))
		return nil, nil
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		e.logger.Warn("failed to parse fetched content", slog.String("url", originalURL), slog.Any("err", err))
		return nil, nil
	}

	text := doc.Text()
	wordCount := int64(len(strings.Fields(text)))
	specialCharCount := countSpecialChars(text)

	return &wordCount, &specialCharCount
}

func countSpecialChars(s string) int64 {
	var n int64
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
