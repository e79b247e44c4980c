// Package enrich fills in lead records through a chain of network probes:
// website discovery, contact extraction, tech fingerprinting, and business
// classification. Each stage is an Enricher; the Coordinator runs the chain
// over pending leads with bounded parallelism and commits the results.
package enrich

import (
	"context"
	"strings"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// Enricher probes one aspect of a lead. A nil Partial with a nil error
// means the stage ran but found nothing to add, including stages that do
// not apply to the lead in its current shape.
type Enricher interface {
	Name() string
	Probe(ctx context.Context, lead model.LeadRecord) (*Partial, error)
}

// Partial carries the fields one stage discovered. Zero values are "not
// found" and leave the lead untouched; boolean signals use pointers so an
// explicit negative still lands.
type Partial struct {
	Website     string
	LinkedInURL string
	Email       string
	Phone       string

	HasCRM         *bool
	CRMDetected    string
	TechStack      []string
	IsSPA          *bool
	HasJobPostings *bool
	HasLinkedIn    *bool

	CompanyType   model.CompanyType
	EmployeeCount int
}

// empty reports whether the stage found nothing at all.
func (p *Partial) empty() bool {
	return p.Website == "" && p.LinkedInURL == "" && p.Email == "" && p.Phone == "" &&
		p.HasCRM == nil && p.CRMDetected == "" && len(p.TechStack) == 0 &&
		p.IsSPA == nil && p.HasJobPostings == nil && p.HasLinkedIn == nil &&
		p.CompanyType == "" && p.EmployeeCount == 0
}

// merge folds a stage result into the lead. Contact fields fill only when
// the lead has none yet; signal fields overwrite since a fresh probe beats
// a stale one.
func merge(lead *model.LeadRecord, p *Partial) {
	if p == nil {
		return
	}
	if p.Website != "" && lead.Website == "" {
		lead.Website = p.Website
	}
	if p.LinkedInURL != "" && lead.LinkedInURL == "" {
		lead.LinkedInURL = p.LinkedInURL
	}
	if p.Email != "" && lead.Email == "" {
		lead.Email = p.Email
	}
	if p.Phone != "" && lead.Phone == "" {
		lead.Phone = p.Phone
	}
	if p.HasCRM != nil {
		lead.HasCRM = p.HasCRM
	}
	if p.CRMDetected != "" {
		lead.CRMDetected = p.CRMDetected
	}
	if len(p.TechStack) > 0 {
		lead.TechStack = strings.Join(p.TechStack, ",")
	}
	if p.IsSPA != nil {
		lead.IsSPA = *p.IsSPA
	}
	if p.HasJobPostings != nil {
		lead.HasJobPostings = *p.HasJobPostings
	}
	if p.HasLinkedIn != nil {
		lead.HasLinkedIn = *p.HasLinkedIn
	}
	if p.CompanyType != "" {
		lead.CompanyType = p.CompanyType
	}
	if p.EmployeeCount > 0 {
		lead.EmployeeCount = p.EmployeeCount
	}
	if lead.LinkedInURL != "" {
		lead.HasLinkedIn = true
	}
}
