// Package model defines the lead data types shared across the pipeline.
package model

import (
	"strings"
	"time"
)

// LeadCandidate is a normalized record produced by the source ingester.
// It is immutable once yielded; the deduplicator decides whether it becomes
// a persisted LeadRecord.
type LeadCandidate struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Source      string `json:"source"`
	SourceID    string `json:"source_id,omitempty"`
}

// CompanyType is the mutually exclusive business classification.
type CompanyType string

const (
	TypeResearchInstitution CompanyType = "research_institution"
	TypeGovernment          CompanyType = "government"
	TypeLargeCompany        CompanyType = "large_company"
	TypeEstablishedBusiness CompanyType = "established_business"
	TypeFarm                CompanyType = "farm"
	TypeArtisanShop         CompanyType = "artisan_shop"
	TypeUnknown             CompanyType = "unknown"
)

// LeadRecord is the persisted lead entity. It is created once by the
// deduplicating writer, mutated by the enrichment coordinator, and scored
// by the scoring engine. Optional boolean signals use pointers so that
// "not probed" is distinguishable from an explicit negative.
type LeadRecord struct {
	ID int64 `json:"id" db:"id"`

	// Identity and source provenance.
	Name        string `json:"name" db:"name"`
	ContactName string `json:"contact_name,omitempty" db:"contact_name"`
	Source      string `json:"source" db:"source"`
	SourceID    string `json:"source_id,omitempty" db:"source_id"`

	// Location.
	Address string `json:"address,omitempty" db:"address"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	ZipCode string `json:"zip_code,omitempty" db:"zip_code"`
	Country string `json:"country,omitempty" db:"country"`

	// Contact.
	Phone       string `json:"phone,omitempty" db:"phone"`
	Email       string `json:"email,omitempty" db:"email"`
	Website     string `json:"website,omitempty" db:"website"`
	LinkedInURL string `json:"linkedin_url,omitempty" db:"linkedin_url"`

	// Enrichment signals.
	HasCRM         *bool       `json:"has_crm,omitempty" db:"has_crm"`
	CRMDetected    string      `json:"crm_detected,omitempty" db:"crm_detected"`
	TechStack      string      `json:"tech_stack,omitempty" db:"tech_stack"`
	IsSPA          bool        `json:"is_spa" db:"is_spa"`
	HasJobPostings bool        `json:"has_job_postings" db:"has_job_postings"`
	HasLinkedIn    bool        `json:"has_linkedin" db:"has_linkedin"`
	CompanyType    CompanyType `json:"company_type,omitempty" db:"company_type"`
	EmployeeCount  int         `json:"employee_count,omitempty" db:"employee_count"`

	// Scoring.
	Score                  float64 `json:"score" db:"score"`
	Qualified              bool    `json:"qualified" db:"qualified"`
	DisqualificationReason string  `json:"disqualification_reason,omitempty" db:"disqualification_reason"`

	// Lifecycle.
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty" db:"last_enriched_at"`
}

// NewLeadRecord builds a fresh record from an ingested candidate with
// enrichment and score fields at their zero defaults. New leads start
// qualified; disqualification only happens through scoring.
func NewLeadRecord(c LeadCandidate) LeadRecord {
	return LeadRecord{
		Name:        c.Name,
		ContactName: c.ContactName,
		Source:      c.Source,
		SourceID:    c.SourceID,
		Address:     c.Address,
		City:        c.City,
		State:       c.State,
		ZipCode:     c.ZipCode,
		Country:     c.Country,
		Phone:       c.Phone,
		Email:       c.Email,
		Website:     c.Website,
		Qualified:   true,
	}
}

// IdentityKey returns the deduplication key for a lead name and state.
// Exact match only: lowercased, whitespace-trimmed name plus upper state code.
func IdentityKey(name, state string) (string, string) {
	return strings.ToLower(strings.TrimSpace(name)), strings.ToUpper(strings.TrimSpace(state))
}

// State reports where a lead sits in its lifecycle.
type State string

const (
	StateEnrichmentPending State = "enrichment_pending"
	StateQualified         State = "qualified"
	StateDisqualified      State = "disqualified"
)

// LifecycleState derives the lead's lifecycle state from its fields.
// Terminal states are Qualified and Disqualified; clearing the enrichment
// timestamp (forced re-enrichment) is the only way back to pending.
func (l *LeadRecord) LifecycleState() State {
	if l.LastEnrichedAt == nil {
		return StateEnrichmentPending
	}
	if !l.Qualified {
		return StateDisqualified
	}
	return StateQualified
}

// Stats summarizes the record store for progress reporting.
type Stats struct {
	Total     int `json:"total"`
	Qualified int `json:"qualified"`
	WithEmail int `json:"with_email"`
	WithPhone int `json:"with_phone"`
	Enriched  int `json:"enriched"`
}
