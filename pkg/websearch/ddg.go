package websearch

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/harvestline/leadgen-cli/internal/requester"
)

const ddgLiteURL = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo searches through the DuckDuckGo Lite HTML interface. Result
// links are either direct or wrapped in a redirect carrying the target in
// the uddg query parameter.
type DuckDuckGo struct {
	req     *requester.Requester
	baseURL string
}

// NewDuckDuckGo creates the engine. An empty baseURL uses the public
// endpoint; tests point it at a local server.
func NewDuckDuckGo(req *requester.Requester, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = ddgLiteURL
	}
	return &DuckDuckGo{req: req, baseURL: baseURL}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	searchURL := d.baseURL + "?q=" + url.QueryEscape(query)

	body, status, err := d.req.Get(ctx, searchURL)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: duckduckgo request")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("websearch: duckduckgo returned %d", status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "websearch: parse duckduckgo response")
	}

	var results []Result
	doc.Find("a.result-link, td a[href*='://'], a[href*='uddg=']").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		if target := unwrapRedirect(href); target != "" {
			href = target
		}
		if !strings.HasPrefix(href, "http") {
			return
		}
		results = append(results, Result{URL: href, Title: strings.TrimSpace(sel.Text())})
	})
	return results, nil
}

// unwrapRedirect extracts the target URL from a DuckDuckGo redirect link,
// or returns "" for direct links.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("uddg")
}
