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

const bingSearchURL = "https://www.bing.com/search"

// Bing searches through Bing's HTML results page.
type Bing struct {
	req     *requester.Requester
	baseURL string
}

// NewBing creates the engine. An empty baseURL uses the public endpoint.
func NewBing(req *requester.Requester, baseURL string) *Bing {
	if baseURL == "" {
		baseURL = bingSearchURL
	}
	return &Bing{req: req, baseURL: baseURL}
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) Search(ctx context.Context, query string) ([]Result, error) {
	searchURL := b.baseURL + "?q=" + url.QueryEscape(query)

	body, status, err := b.req.Get(ctx, searchURL)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: bing request")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("websearch: bing returned %d", status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "websearch: parse bing response")
	}

	var results []Result
	doc.Find("li.b_algo h2 a, .b_algo a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return
		}
		results = append(results, Result{URL: href, Title: strings.TrimSpace(sel.Text())})
	})
	return results, nil
}
