package newswire

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Candidate is an article surfaced by one collection call. It lives only for
// the duration of a pipeline run and is never persisted directly.
type Candidate struct {
	Title       string
	Publisher   string
	Snippet     string
	Link        string
	OriginLink  string
	Body        string
	PublishedAt time.Time
}

const (
	defaultBaseURL = "https://openapi.naver.com/v1/search/news.json"

	pageSize    = 100
	maxPages    = 2
	batchSize   = 3
	batchDelay  = 500 * time.Millisecond
	retryMax    = 2
	retryDelay  = time.Second
	callTimeout = 15 * time.Second
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// Client queries the keyword search collaborator. Results are deduplicated by
// origin URL, newest first, clipped to the caller's cap.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the search endpoint, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(clientID, clientSecret string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: callTimeout},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search collects candidates for every keyword published at or after since.
// Keywords are queried in small batches with a pause in between to stay under
// the collaborator's rate limit. An empty result is not an error.
func (c *Client) Search(ctx context.Context, keywords []string, since time.Time, maxResults int) ([]Candidate, error) {
	if c == nil {
		return nil, fmt.Errorf("newswire client is not initialized")
	}
	if maxResults <= 0 {
		return nil, fmt.Errorf("max results must be positive")
	}

	perKeyword := make([][]Candidate, 0, len(keywords))
	for i := 0; i < len(keywords); i += batchSize {
		end := min(i+batchSize, len(keywords))
		for _, keyword := range keywords[i:end] {
			items, err := c.searchKeyword(ctx, keyword, since)
			if err != nil {
				return nil, fmt.Errorf("search keyword %q: %w", keyword, err)
			}
			perKeyword = append(perKeyword, items)
		}

		if end < len(keywords) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(batchDelay):
			}
		}
	}

	seen := make(map[string]struct{}, maxResults)
	merged := make([]Candidate, 0, maxResults)
	for _, items := range perKeyword {
		for _, item := range items {
			if _, exists := seen[item.OriginLink]; exists {
				continue
			}
			seen[item.OriginLink] = struct{}{}
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	c.logger.Info().
		Int("keywords", len(keywords)).
		Int("candidates", len(merged)).
		Time("since", since).
		Msg("newswire search complete")
	return merged, nil
}

func (c *Client) searchKeyword(ctx context.Context, keyword string, since time.Time) ([]Candidate, error) {
	results := make([]Candidate, 0, pageSize)

	for page := 0; page < maxPages; page++ {
		start := page*pageSize + 1
		payload, err := c.requestWithRetry(ctx, keyword, start)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			break
		}

		if len(payload.Items) == 0 {
			break
		}

		hitOld := false
		for _, item := range payload.Items {
			candidate, err := parseItem(item)
			if err != nil {
				c.logger.Warn().Err(err).Str("keyword", keyword).Msg("skipping malformed search item")
				continue
			}
			if candidate.PublishedAt.Before(since) {
				hitOld = true
				continue
			}
			results = append(results, candidate)
		}

		// Results arrive newest first, so crossing the window edge means
		// every later page is out of range too.
		if hitOld || len(payload.Items) < pageSize {
			break
		}
	}

	return results, nil
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	OriginalLink string `json:"originallink"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

func (c *Client) requestWithRetry(ctx context.Context, keyword string, start int) (*searchResponse, error) {
	for attempt := 0; attempt <= retryMax; attempt++ {
		payload, retryable, err := c.requestOnce(ctx, keyword, start)
		if err == nil {
			return payload, nil
		}
		if !retryable || attempt == retryMax {
			if retryable {
				c.logger.Error().Str("keyword", keyword).Msg("rate limit retries exhausted, skipping keyword")
				return nil, nil
			}
			return nil, err
		}

		delay := retryDelay * time.Duration(attempt+1)
		c.logger.Warn().
			Str("keyword", keyword).
			Dur("delay", delay).
			Int("attempt", attempt+1).
			Msg("rate limited, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, nil
}

func (c *Client) requestOnce(ctx context.Context, keyword string, start int) (*searchResponse, bool, error) {
	query := url.Values{}
	query.Set("query", keyword)
	query.Set("display", strconv.Itoa(pageSize))
	query.Set("start", strconv.Itoa(start))
	query.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("search rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("search status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read search response: %w", err)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("decode search response: %w", err)
	}
	return &payload, false, nil
}

func parseItem(item searchItem) (Candidate, error) {
	publishedAt, err := mail.ParseDate(strings.TrimSpace(item.PubDate))
	if err != nil {
		return Candidate{}, fmt.Errorf("parse pubDate %q: %w", item.PubDate, err)
	}

	origin := strings.TrimSpace(item.OriginalLink)
	if origin == "" {
		origin = strings.TrimSpace(item.Link)
	}

	return Candidate{
		Title:       stripHTML(item.Title),
		Snippet:     stripHTML(item.Description),
		Link:        strings.TrimSpace(item.Link),
		OriginLink:  origin,
		PublishedAt: publishedAt.UTC(),
	}, nil
}

func stripHTML(text string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(text, "")))
}
