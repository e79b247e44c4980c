// Package websearch finds company websites and LinkedIn pages through
// public search engines. DuckDuckGo Lite is tried first, Bing as fallback.
package websearch

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Result is one organic search hit.
type Result struct {
	URL   string
	Title string
}

// Engine runs a query against one search provider.
type Engine interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// excludedDomains are social networks, directories, and aggregators that
// are never a company's own website.
var excludedDomains = []string{
	"facebook.com", "twitter.com", "instagram.com", "linkedin.com",
	"youtube.com", "yelp.com", "yellowpages.com", "bbb.org",
	"manta.com", "dnb.com", "zoominfo.com", "crunchbase.com",
	"bloomberg.com", "wikipedia.org", "amazon.com", "walmart.com",
	"chamberofcommerce.com", "indeed.com", "glassdoor.com",
	"mapquest.com", "google.com", "bing.com", "duckduckgo.com",
}

// directoryPathMarkers flag search or listing pages rather than homepages.
var directoryPathMarkers = []string{"/search", "/directory", "/results", "/find"}

// Finder resolves company websites by querying engines in order until one
// yields an acceptable URL.
type Finder struct {
	engines   []Engine
	blocklist []string
}

// NewFinder creates a Finder over the given engines. Extra blocklist
// entries extend the built-in excluded domains.
func NewFinder(engines []Engine, extraBlocklist ...string) *Finder {
	return &Finder{
		engines:   engines,
		blocklist: append(append([]string{}, excludedDomains...), extraBlocklist...),
	}
}

// FindWebsite searches for the company's own website. Returns "" without
// error when nothing acceptable turns up; engine failures only log.
func (f *Finder) FindWebsite(ctx context.Context, name, city, state string) (string, error) {
	query := buildQuery(name, city, state)

	for _, eng := range f.engines {
		results, err := eng.Search(ctx, query)
		if err != nil {
			zap.L().Debug("websearch: engine failed",
				zap.String("engine", eng.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		for _, r := range results {
			if f.IsCompanySite(r.URL) {
				return r.URL, nil
			}
		}
	}
	return "", ctx.Err()
}

// FindLinkedIn searches for the company's LinkedIn page.
func (f *Finder) FindLinkedIn(ctx context.Context, name, state string) (string, error) {
	query := "site:linkedin.com/company " + buildQuery(name, "", state)

	for _, eng := range f.engines {
		results, err := eng.Search(ctx, query)
		if err != nil {
			zap.L().Debug("websearch: engine failed",
				zap.String("engine", eng.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		for _, r := range results {
			if strings.Contains(r.URL, "linkedin.com/company") {
				return r.URL, nil
			}
		}
	}
	return "", ctx.Err()
}

// IsCompanySite reports whether a URL plausibly points at a company's own
// website rather than a social profile, directory, or search page.
func (f *Finder) IsCompanySite(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	domain := strings.ToLower(u.Host)
	domain = strings.TrimPrefix(domain, "www.")

	for _, excluded := range f.blocklist {
		if strings.Contains(domain, excluded) {
			return false
		}
	}

	path := strings.ToLower(u.Path)
	for _, marker := range directoryPathMarkers {
		if strings.Contains(path, marker) {
			return false
		}
	}
	return true
}

func buildQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
