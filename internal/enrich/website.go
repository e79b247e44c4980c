package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/pkg/websearch"
)

// WebsiteFinder discovers a lead's own website and LinkedIn company page
// through public search engines. It only runs for leads that have no
// website yet.
type WebsiteFinder struct {
	finder *websearch.Finder
}

func NewWebsiteFinder(finder *websearch.Finder) *WebsiteFinder {
	return &WebsiteFinder{finder: finder}
}

func (w *WebsiteFinder) Name() string { return "website_finder" }

func (w *WebsiteFinder) Probe(ctx context.Context, lead model.LeadRecord) (*Partial, error) {
	if lead.Website != "" {
		return nil, nil
	}

	site, err := w.finder.FindWebsite(ctx, lead.Name, lead.City, lead.State)
	if err != nil {
		return nil, err
	}

	linkedin, err := w.finder.FindLinkedIn(ctx, lead.Name, lead.State)
	if err != nil {
		// The website alone is still worth keeping.
		zap.L().Debug("enrich: linkedin lookup failed",
			zap.String("lead", lead.Name),
			zap.Error(err),
		)
	}

	if site == "" && linkedin == "" {
		return nil, nil
	}
	p := &Partial{Website: site, LinkedInURL: linkedin}
	if linkedin != "" {
		hasLinkedIn := true
		p.HasLinkedIn = &hasLinkedIn
	}
	return p, nil
}
