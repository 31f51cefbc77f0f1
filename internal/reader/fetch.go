package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	defaultUserAgent = "presscheck-reader/1.0"

	// Only the opening paragraphs go into classification prompts; the full
	// body would blow the prompt size ceiling for no judgement benefit.
	maxParagraphs = 3
	maxBodyRunes  = 1200
)

// Fetcher retrieves article bodies for shortlisted candidates with bounded
// concurrency. Per-URL failures yield a nil entry, never a batch failure.
type Fetcher struct {
	httpClient  *http.Client
	userAgent   string
	concurrency int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherHTTPClient overrides the HTTP client, used by tests.
func WithFetcherHTTPClient(httpClient *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = httpClient }
}

func NewFetcher(concurrency int, opts ...FetcherOption) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	f := &Fetcher{
		httpClient:  &http.Client{Timeout: DefaultFetchTimeout},
		userAgent:   defaultUserAgent,
		concurrency: concurrency,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBatch retrieves extracted bodies for every URL. The returned map has
// one entry per input URL; entries are nil when that URL failed.
func (f *Fetcher) FetchBatch(ctx context.Context, urls []string) (map[string]*string, error) {
	if f == nil {
		return nil, fmt.Errorf("fetcher is not initialized")
	}

	results := make(map[string]*string, len(urls))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.concurrency)

	for _, pageURL := range urls {
		group.Go(func() error {
			body, err := f.fetchOne(groupCtx, pageURL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[pageURL] = nil
				return nil
			}
			results[pageURL] = &body
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, pageURL string) (string, error) {
	page := strings.TrimSpace(pageURL)
	if page == "" {
		return "", fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, DefaultBodyByteLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	parsedURL, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := leadingParagraphs(renderedText.String())
	if text == "" {
		return "", fmt.Errorf("no readable text")
	}
	return text, nil
}

// leadingParagraphs keeps the first few non-empty paragraphs, clipped to a
// rune budget.
func leadingParagraphs(text string) string {
	paragraphs := make([]string, 0, maxParagraphs)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paragraphs = append(paragraphs, line)
		if len(paragraphs) >= maxParagraphs {
			break
		}
	}

	joined := strings.Join(paragraphs, "\n")
	runes := []rune(joined)
	if len(runes) > maxBodyRunes {
		joined = string(runes[:maxBodyRunes])
	}
	return joined
}
