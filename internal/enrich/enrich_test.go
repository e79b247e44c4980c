package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harvestline/leadgen-cli/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestMerge_FillsOnlyMissingContactFields(t *testing.T) {
	lead := model.LeadRecord{
		Name:  "Acme Creamery",
		Email: "existing@acme.example",
	}
	merge(&lead, &Partial{
		Website: "https://acme.example",
		Email:   "found@acme.example",
		Phone:   "(608) 555-0142",
	})

	assert.Equal(t, "https://acme.example", lead.Website)
	assert.Equal(t, "existing@acme.example", lead.Email)
	assert.Equal(t, "(608) 555-0142", lead.Phone)
}

func TestMerge_SignalsOverwrite(t *testing.T) {
	lead := model.LeadRecord{HasCRM: boolPtr(true), CRMDetected: "hubspot", IsSPA: true}
	merge(&lead, &Partial{
		HasCRM:    boolPtr(false),
		IsSPA:     boolPtr(false),
		TechStack: []string{"google_analytics", "react"},
	})

	assert.False(t, *lead.HasCRM)
	assert.False(t, lead.IsSPA)
	assert.Equal(t, "google_analytics,react", lead.TechStack)
	// Vendor string is only replaced by a non-empty detection.
	assert.Equal(t, "hubspot", lead.CRMDetected)
}

func TestMerge_LinkedInURLImpliesHasLinkedIn(t *testing.T) {
	lead := model.LeadRecord{}
	merge(&lead, &Partial{LinkedInURL: "https://www.linkedin.com/company/acme"})

	assert.True(t, lead.HasLinkedIn)
	assert.Equal(t, "https://www.linkedin.com/company/acme", lead.LinkedInURL)
}

func TestMerge_NilPartialIsNoop(t *testing.T) {
	lead := model.LeadRecord{Name: "Acme"}
	merge(&lead, nil)
	assert.Equal(t, model.LeadRecord{Name: "Acme"}, lead)
}

func TestPartial_Empty(t *testing.T) {
	assert.True(t, (&Partial{}).empty())
	assert.False(t, (&Partial{Email: "a@b.example"}).empty())
	assert.False(t, (&Partial{HasCRM: boolPtr(false)}).empty())
	assert.False(t, (&Partial{CompanyType: model.TypeFarm}).empty())
}
