package enrich

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/requester"
)

// contactPaths are checked after the homepage, in order, same-origin only.
var contactPaths = []string{
	"/contact", "/contact-us", "/about", "/about-us", "/connect", "/reach-us",
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
)

// excludedEmails are placeholder or unattended addresses that appear in page
// templates rather than belonging to the business. Matched as substrings, so
// whole addresses like info@example.com are rejected alongside the no-reply
// prefixes.
var excludedEmails = []string{
	"example@example.com", "test@test.com", "email@email.com",
	"info@example.com", "support@example.com",
	"noreply@", "no-reply@", "donotreply@",
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

var socialHosts = []string{
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com", "youtube.com",
}

var jobLinkMarkers = []string{"career", "/jobs", "hiring", "join-our-team", "employment"}

// ContactExtractor pulls emails, phone numbers, social links, and hiring
// signals off a lead's website. It only runs when a website is known.
type ContactExtractor struct {
	req *requester.Requester
}

func NewContactExtractor(req *requester.Requester) *ContactExtractor {
	return &ContactExtractor{req: req}
}

func (c *ContactExtractor) Name() string { return "contact_extractor" }

func (c *ContactExtractor) Probe(ctx context.Context, lead model.LeadRecord) (*Partial, error) {
	if lead.Website == "" {
		return nil, nil
	}

	base, err := url.Parse(normalizeScheme(lead.Website))
	if err != nil || base.Host == "" {
		return nil, nil
	}

	p := &Partial{}
	social := map[string]string{}
	hasJobs := false

	pages := append([]string{""}, contactPaths...)
	for _, path := range pages {
		if p.Email != "" && p.Phone != "" && len(social) == len(socialHosts) {
			break
		}
		pageURL := base.Scheme + "://" + base.Host + path
		body, status, err := c.req.Get(ctx, pageURL)
		if err != nil || status != http.StatusOK {
			if err != nil {
				zap.L().Debug("enrich: contact page fetch failed",
					zap.String("url", pageURL),
					zap.Error(err),
				)
			}
			continue
		}
		c.scanPage(body, p, social, &hasJobs)
	}

	if linkedin, ok := social["linkedin.com"]; ok && p.LinkedInURL == "" {
		p.LinkedInURL = linkedin
		hasLinkedIn := true
		p.HasLinkedIn = &hasLinkedIn
	}
	if hasJobs {
		p.HasJobPostings = &hasJobs
	}
	if p.empty() {
		return nil, nil
	}
	return p, nil
}

// scanPage extracts contact details from one fetched page, keeping the
// first value seen for each field.
func (c *ContactExtractor) scanPage(body []byte, p *Partial, social map[string]string, hasJobs *bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		switch {
		case strings.HasPrefix(href, "mailto:"):
			addr := strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0]
			if p.Email == "" && acceptableEmail(addr) {
				p.Email = strings.ToLower(addr)
			}
		default:
			lower := strings.ToLower(href)
			for _, host := range socialHosts {
				if strings.Contains(lower, host) {
					if _, seen := social[host]; !seen {
						social[host] = href
					}
				}
			}
			for _, marker := range jobLinkMarkers {
				if strings.Contains(lower, marker) {
					*hasJobs = true
				}
			}
		}
	})

	text := doc.Text()
	if p.Email == "" {
		for _, match := range emailPattern.FindAllString(text, 10) {
			if acceptableEmail(match) {
				p.Email = strings.ToLower(match)
				break
			}
		}
	}
	if p.Phone == "" {
		if m := phonePattern.FindStringSubmatch(text); m != nil {
			p.Phone = formatPhone(m[1], m[2], m[3])
		}
	}
}

func acceptableEmail(addr string) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if len(addr) < 6 || !strings.Contains(addr, "@") {
		return false
	}
	for _, excluded := range excludedEmails {
		if strings.Contains(addr, excluded) {
			return false
		}
	}
	// Image filenames matched by the pattern, e.g. logo@2x.png.
	for _, ext := range imageExtensions {
		if strings.HasSuffix(addr, ext) {
			return false
		}
	}
	return true
}

func formatPhone(area, prefix, line string) string {
	return "(" + area + ") " + prefix + "-" + line
}

func normalizeScheme(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return "https://" + rawURL
	}
	return rawURL
}
