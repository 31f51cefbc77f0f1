package filter

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"horse.fit/presscheck/internal/newswire"
)

//go:embed publishers.json
var publishersJSON []byte

// Publisher is one allowlisted outlet, matched by registrable-domain suffix
// with optional subdomain carve-outs.
type Publisher struct {
	Name              string   `json:"name"`
	Domain            string   `json:"domain"`
	ExcludeSubdomains []string `json:"exclude_subdomains,omitempty"`
}

type publisherFile struct {
	Publishers []Publisher `json:"publishers"`
}

var (
	loadOnce      sync.Once
	loadedList    []Publisher
	loadedListErr error
)

func loadPublishers() ([]Publisher, error) {
	loadOnce.Do(func() {
		var file publisherFile
		if err := json.Unmarshal(publishersJSON, &file); err != nil {
			loadedListErr = fmt.Errorf("decode embedded publishers: %w", err)
			return
		}
		if len(file.Publishers) == 0 {
			loadedListErr = fmt.Errorf("embedded publisher allowlist is empty")
			return
		}
		loadedList = file.Publishers
	})
	return loadedList, loadedListErr
}

// Allowlist answers publisher-membership questions for candidate URLs.
type Allowlist struct {
	publishers []Publisher
}

// NewAllowlist builds an allowlist from the embedded publisher set.
func NewAllowlist() (*Allowlist, error) {
	publishers, err := loadPublishers()
	if err != nil {
		return nil, err
	}
	return &Allowlist{publishers: publishers}, nil
}

// NewAllowlistFrom builds an allowlist from an explicit publisher set,
// used by tests.
func NewAllowlistFrom(publishers []Publisher) *Allowlist {
	return &Allowlist{publishers: publishers}
}

// PublisherName resolves the outlet name for a URL, or "" when the URL's
// domain is not allowlisted.
func (a *Allowlist) PublisherName(rawURL string) string {
	if a == nil {
		return ""
	}
	domain := extractDomain(rawURL)
	if domain == "" {
		return ""
	}
	for _, pub := range a.publishers {
		if matchDomain(domain, pub.Domain, pub.ExcludeSubdomains) {
			return pub.Name
		}
	}
	return ""
}

// ByPublisher keeps only candidates whose origin URL belongs to an
// allowlisted outlet.
func (a *Allowlist) ByPublisher(candidates []newswire.Candidate) []newswire.Candidate {
	if a == nil {
		return nil
	}
	kept := make([]newswire.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		name := a.PublisherName(candidate.OriginLink)
		if name == "" {
			continue
		}
		candidate.Publisher = name
		kept = append(kept, candidate)
	}
	return kept
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// matchDomain reports whether articleDomain equals publisherDomain or is a
// subdomain of it. "news.chosun.com" matches "chosun.com";
// "notchosun.com" does not. Excluded subdomains never match.
func matchDomain(articleDomain, publisherDomain string, excludeSubdomains []string) bool {
	for _, excluded := range excludeSubdomains {
		if articleDomain == strings.ToLower(excluded) {
			return false
		}
	}
	publisherDomain = strings.ToLower(publisherDomain)
	return articleDomain == publisherDomain ||
		strings.HasSuffix(articleDomain, "."+publisherDomain)
}
