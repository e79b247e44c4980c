package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestline/leadgen-cli/internal/requester"
)

func testRequester() *requester.Requester {
	return requester.New(requester.Options{
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		Seed:         1,
	})
}

const ddgFixture = `<html><body><table>
<tr><td><a class="result-link" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.acmecreamery.com%2F&rut=abc">Acme Creamery</a></td></tr>
<tr><td><a href="https://www.yelp.com/biz/acme-creamery">Acme Creamery - Yelp</a></td></tr>
<tr><td><a href="https://acmecreamery.com/about">About Us</a></td></tr>
</table></body></html>`

const bingFixture = `<html><body><ol id="b_results">
<li class="b_algo"><h2><a href="https://www.birchhollowfarm.com/">Birch Hollow Farm</a></h2></li>
<li class="b_algo"><h2><a href="/search?q=birch+hollow">More results</a></h2></li>
<li class="b_algo"><h2><a href="https://www.facebook.com/birchhollow">Birch Hollow Farm - Facebook</a></h2></li>
</ol></body></html>`

func TestDuckDuckGo_Search_UnwrapsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme creamery madison WI", r.URL.Query().Get("q"))
		fmt.Fprint(w, ddgFixture)
	}))
	defer srv.Close()

	eng := NewDuckDuckGo(testRequester(), srv.URL)
	results, err := eng.Search(context.Background(), "acme creamery madison WI")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "https://www.acmecreamery.com/", results[0].URL)
	assert.Equal(t, "Acme Creamery", results[0].Title)
	assert.Equal(t, "https://www.yelp.com/biz/acme-creamery", results[1].URL)
}

func TestDuckDuckGo_Search_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	eng := NewDuckDuckGo(testRequester(), srv.URL)
	_, err := eng.Search(context.Background(), "anything")
	require.Error(t, err)
}

func TestBing_Search_SkipsRelativeLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, bingFixture)
	}))
	defer srv.Close()

	eng := NewBing(testRequester(), srv.URL)
	results, err := eng.Search(context.Background(), "birch hollow farm MN")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://www.birchhollowfarm.com/", results[0].URL)
	assert.Equal(t, "https://www.facebook.com/birchhollow", results[1].URL)
}

// stubEngine lets Finder tests control results without HTTP.
type stubEngine struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Search(_ context.Context, _ string) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func TestFinder_FindWebsite_FirstAcceptableResult(t *testing.T) {
	eng := &stubEngine{name: "stub", results: []Result{
		{URL: "https://www.yelp.com/biz/cedar-creamery"},
		{URL: "https://directory.example.com/search?q=cedar"},
		{URL: "https://cedarcreamery.com/"},
	}}
	f := NewFinder([]Engine{eng})

	got, err := f.FindWebsite(context.Background(), "Cedar Creamery", "Burlington", "VT")
	require.NoError(t, err)
	assert.Equal(t, "https://cedarcreamery.com/", got)
}

func TestFinder_FindWebsite_FallsBackToSecondEngine(t *testing.T) {
	broken := &stubEngine{name: "broken", err: eris.New("engine down")}
	working := &stubEngine{name: "working", results: []Result{
		{URL: "https://birchhollowfarm.com/"},
	}}
	f := NewFinder([]Engine{broken, working})

	got, err := f.FindWebsite(context.Background(), "Birch Hollow Farm", "", "MN")
	require.NoError(t, err)
	assert.Equal(t, "https://birchhollowfarm.com/", got)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, working.calls)
}

func TestFinder_FindWebsite_NothingAcceptable(t *testing.T) {
	eng := &stubEngine{name: "stub", results: []Result{
		{URL: "https://www.facebook.com/acme"},
		{URL: "https://www.linkedin.com/company/acme"},
	}}
	f := NewFinder([]Engine{eng})

	got, err := f.FindWebsite(context.Background(), "Acme", "", "WI")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFinder_FindLinkedIn(t *testing.T) {
	eng := &stubEngine{name: "stub", results: []Result{
		{URL: "https://www.acme.com/"},
		{URL: "https://www.linkedin.com/company/acme-creamery"},
	}}
	f := NewFinder([]Engine{eng})

	got, err := f.FindLinkedIn(context.Background(), "Acme Creamery", "WI")
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/company/acme-creamery", got)
}

func TestFinder_IsCompanySite(t *testing.T) {
	f := NewFinder(nil, "customblocked.com")

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"plain company site", "https://acmecreamery.com/", true},
		{"www stripped before check", "https://www.acmecreamery.com/about", true},
		{"social network", "https://www.facebook.com/acme", false},
		{"directory aggregator", "https://www.yellowpages.com/madison-wi/acme", false},
		{"subdomain of excluded", "https://business.linkedin.com/acme", false},
		{"search engine", "https://www.google.com/maps/place/acme", false},
		{"search path marker", "https://example.com/search?q=acme", false},
		{"directory path marker", "https://example.com/directory/dairies", false},
		{"results path marker", "https://example.com/results/123", false},
		{"extra blocklist entry", "https://customblocked.com/", false},
		{"no host", "not-a-url", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsCompanySite(tt.url))
		})
	}
}

func TestUnwrapRedirect(t *testing.T) {
	target := "https://www.acmecreamery.com/contact"
	wrapped := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(target) + "&rut=xyz"
	assert.Equal(t, target, unwrapRedirect(wrapped))
	assert.Empty(t, unwrapRedirect("https://direct.example.com/"))
}
