package enrich

import (
	"context"
	"net/http"
	"strings"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/requester"
)

// Detector recognizes one product or framework in a page source.
type Detector interface {
	Category() string
	Vendor() string
	Match(page string) bool
}

const (
	categoryCRM       = "crm"
	categorySPA       = "spa"
	categoryAnalytics = "analytics"
)

// signatureDetector matches any of a set of literal substrings against the
// lowercased page source.
type signatureDetector struct {
	category   string
	vendor     string
	signatures []string
}

func (d signatureDetector) Category() string { return d.category }
func (d signatureDetector) Vendor() string   { return d.vendor }

func (d signatureDetector) Match(page string) bool {
	for _, sig := range d.signatures {
		if strings.Contains(page, sig) {
			return true
		}
	}
	return false
}

// defaultDetectors covers the CRM vendors, SPA frameworks, and analytics
// providers worth reacting to. CRM order matters: the first match is the
// vendor reported.
func defaultDetectors() []Detector {
	return []Detector{
		signatureDetector{categoryCRM, "hubspot", []string{"hs-scripts.com", "hsforms.net", "hubspot"}},
		signatureDetector{categoryCRM, "salesforce", []string{"salesforce", "pardot.com", "force.com"}},
		signatureDetector{categoryCRM, "zoho", []string{"zoho.com", "zohocdn"}},
		signatureDetector{categoryCRM, "pipedrive", []string{"pipedrive"}},
		signatureDetector{categoryCRM, "freshsales", []string{"freshsales", "freshworks"}},
		signatureDetector{categoryCRM, "marketo", []string{"marketo", "mktoresp"}},
		signatureDetector{categoryCRM, "intercom", []string{"intercom.io", "intercomcdn"}},
		signatureDetector{categorySPA, "react", []string{"react", "__next_data__", "_next/static"}},
		signatureDetector{categorySPA, "angular", []string{"ng-app", "angular"}},
		signatureDetector{categorySPA, "vue", []string{"vue.js", "vue.min.js", "__nuxt__", "data-v-app"}},
		signatureDetector{categoryAnalytics, "google_analytics", []string{"google-analytics.com", "googletagmanager", "gtag("}},
		signatureDetector{categoryAnalytics, "segment", []string{"cdn.segment.com"}},
		signatureDetector{categoryAnalytics, "mixpanel", []string{"mixpanel"}},
		signatureDetector{categoryAnalytics, "hotjar", []string{"hotjar"}},
	}
}

// TechFingerprinter fetches a lead's homepage and reports what it runs on.
type TechFingerprinter struct {
	req       *requester.Requester
	detectors []Detector
}

// NewTechFingerprinter builds the fingerprinter. Nil detectors means the
// default signature tables.
func NewTechFingerprinter(req *requester.Requester, detectors []Detector) *TechFingerprinter {
	if detectors == nil {
		detectors = defaultDetectors()
	}
	return &TechFingerprinter{req: req, detectors: detectors}
}

func (t *TechFingerprinter) Name() string { return "tech_fingerprinter" }

func (t *TechFingerprinter) Probe(ctx context.Context, lead model.LeadRecord) (*Partial, error) {
	if lead.Website == "" {
		return nil, nil
	}

	body, status, err := t.req.Get(ctx, lead.Website)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, nil
	}

	page := strings.ToLower(string(body))

	var matched []string
	crmVendor := ""
	isSPA := false
	for _, d := range t.detectors {
		if !d.Match(page) {
			continue
		}
		matched = append(matched, d.Vendor())
		switch d.Category() {
		case categoryCRM:
			if crmVendor == "" {
				crmVendor = d.Vendor()
			}
		case categorySPA:
			isSPA = true
		}
	}

	hasCRM := crmVendor != ""
	p := &Partial{
		HasCRM:      &hasCRM,
		CRMDetected: crmVendor,
		TechStack:   matched,
		IsSPA:       &isSPA,
	}
	return p, nil
}
