// Package scoring turns enrichment signals into a deterministic lead score.
// Scoring is pure: the same signals always produce the same result, and no
// I/O happens here.
package scoring

import (
	"fmt"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// Signals is the input to the scoring engine, extracted from an enriched
// lead. HasCRM distinguishes "probed and absent" (false) from "never
// probed" (nil), which scores zero.
type Signals struct {
	EmployeeCount  int
	HasEmail       bool
	HasPhone       bool
	HasCRM         *bool
	CRMVendor      string
	HasWebsite     bool
	IsSPA          bool
	HasJobPostings bool
	HasLinkedIn    bool
	CompanyType    model.CompanyType
}

// FromRecord extracts scoring signals from a lead record.
func FromRecord(rec *model.LeadRecord) Signals {
	return Signals{
		EmployeeCount:  rec.EmployeeCount,
		HasEmail:       rec.Email != "",
		HasPhone:       rec.Phone != "",
		HasCRM:         rec.HasCRM,
		CRMVendor:      rec.CRMDetected,
		HasWebsite:     rec.Website != "",
		IsSPA:          rec.IsSPA,
		HasJobPostings: rec.HasJobPostings,
		HasLinkedIn:    rec.HasLinkedIn,
		CompanyType:    rec.CompanyType,
	}
}

// Result is the scoring outcome. Reason is set only when Qualified is
// false, and holds the first disqualifier in rule order.
type Result struct {
	Score     float64 `json:"score"`
	Qualified bool    `json:"qualified"`
	Reason    string  `json:"reason,omitempty"`
}

// Engine scores leads against a weight table.
type Engine struct {
	weights Weights
}

// NewEngine creates a scoring engine.
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// Score evaluates the signals. Rules apply in a fixed order; points from
// rules after a disqualifier still accumulate into Score, but Qualified
// stays false and the first disqualification reason is kept.
func (e *Engine) Score(s Signals) Result {
	res := Result{Qualified: true}
	disqualify := func(reason string) {
		if res.Qualified {
			res.Qualified = false
			res.Reason = reason
		}
	}

	if s.EmployeeCount > 0 {
		if s.EmployeeCount >= MinTargetEmployees && s.EmployeeCount <= MaxTargetEmployees {
			res.Score += e.weights.EmployeeCountInRange
		} else if s.EmployeeCount > MaxTargetEmployees {
			disqualify(fmt.Sprintf("too large: %d employees", s.EmployeeCount))
		}
	}

	if s.HasEmail {
		res.Score += e.weights.EmailFound
	}
	if s.HasPhone {
		res.Score += e.weights.PhoneFound
	}

	if s.HasCRM != nil {
		if *s.HasCRM {
			vendor := s.CRMVendor
			if vendor == "" {
				vendor = "unknown"
			}
			disqualify(fmt.Sprintf("has CRM: %s", vendor))
		} else {
			res.Score += e.weights.NoCRMDetected
		}
	}

	if s.HasWebsite {
		res.Score += e.weights.HasWebsite
	}
	if !s.IsSPA {
		res.Score += e.weights.BasicWebsite
	}
	if s.HasJobPostings {
		res.Score += e.weights.HasJobPostings
	}
	if s.HasLinkedIn {
		res.Score += e.weights.HasLinkedIn
	}

	switch s.CompanyType {
	case model.TypeResearchInstitution:
		disqualify("research institution (not a business)")
	case model.TypeGovernment:
		disqualify("government agency")
	case model.TypeEstablishedBusiness:
		res.Score += e.weights.TypeEstablishedBusiness
	case model.TypeFarm:
		res.Score += e.weights.TypeFarm
	case model.TypeArtisanShop:
		res.Score += e.weights.TypeArtisanShop
	}

	return res
}

// Breakdown returns a human-readable explanation of each contribution,
// ending with the total.
func (e *Engine) Breakdown(s Signals) []string {
	var lines []string
	add := func(pts float64, label string) {
		lines = append(lines, fmt.Sprintf("%+g: %s", pts, label))
	}

	if s.EmployeeCount > 0 {
		if s.EmployeeCount >= MinTargetEmployees && s.EmployeeCount <= MaxTargetEmployees {
			add(e.weights.EmployeeCountInRange, fmt.Sprintf("%d employees (target range)", s.EmployeeCount))
		} else if s.EmployeeCount > MaxTargetEmployees {
			lines = append(lines, fmt.Sprintf("DISQUALIFIED: %d employees (too large)", s.EmployeeCount))
		}
	}

	if s.HasEmail {
		add(e.weights.EmailFound, "email found")
	}
	if s.HasPhone {
		add(e.weights.PhoneFound, "phone found")
	}

	if s.HasCRM != nil {
		if *s.HasCRM {
			vendor := s.CRMVendor
			if vendor == "" {
				vendor = "unknown"
			}
			lines = append(lines, fmt.Sprintf("DISQUALIFIED: has CRM (%s)", vendor))
		} else {
			add(e.weights.NoCRMDetected, "no CRM detected")
		}
	}

	if s.HasWebsite {
		add(e.weights.HasWebsite, "has website")
	}
	if !s.IsSPA {
		add(e.weights.BasicWebsite, "basic website (no SPA)")
	}
	if s.HasJobPostings {
		add(e.weights.HasJobPostings, "has job postings")
	}
	if s.HasLinkedIn {
		add(e.weights.HasLinkedIn, "has LinkedIn page")
	}

	switch s.CompanyType {
	case model.TypeResearchInstitution:
		lines = append(lines, "DISQUALIFIED: research institution")
	case model.TypeGovernment:
		lines = append(lines, "DISQUALIFIED: government agency")
	case model.TypeEstablishedBusiness:
		add(e.weights.TypeEstablishedBusiness, "established business")
	case model.TypeFarm:
		add(e.weights.TypeFarm, "farm")
	case model.TypeArtisanShop:
		add(e.weights.TypeArtisanShop, "artisan shop (deprioritized)")
	}

	res := e.Score(s)
	lines = append(lines, fmt.Sprintf("TOTAL: %g", res.Score))
	return lines
}

// Apply scores a record in place, updating Score, Qualified, and
// DisqualificationReason.
func (e *Engine) Apply(rec *model.LeadRecord) Result {
	res := e.Score(FromRecord(rec))
	rec.Score = res.Score
	rec.Qualified = res.Qualified
	rec.DisqualificationReason = res.Reason
	return res
}
