package enrich

import (
	"context"
	"net/url"
	"strings"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// typeKeywords score a lead name toward one category. Specific words carry
// more weight than generic incorporation suffixes.
var typeKeywords = map[model.CompanyType]map[string]float64{
	model.TypeResearchInstitution: {
		"university": 3, "institute": 3, "laboratory": 3, "research": 2,
		"college": 3, "academy": 2, "extension": 2,
	},
	model.TypeGovernment: {
		"department of": 3, "bureau": 3, "county": 2, "city of": 3,
		"state of": 3, "agency": 2, "commission": 2,
	},
	model.TypeLargeCompany: {
		"corporation": 2, "international": 2, "global": 2, "holdings": 2,
		"group": 1, "industries": 2,
	},
	model.TypeEstablishedBusiness: {
		"llc": 1, "inc": 1, "co.": 1, "company": 1, "ltd": 1, "enterprises": 1,
	},
	model.TypeFarm: {
		"farm": 3, "ranch": 3, "orchard": 3, "dairy": 2, "creamery": 2,
		"acres": 2, "gardens": 2, "grove": 2, "apiary": 3, "vineyard": 3,
		"homestead": 2,
	},
	model.TypeArtisanShop: {
		"artisan": 3, "bakery": 2, "handmade": 3, "craft": 2, "boutique": 2,
		"roastery": 2, "kitchen": 1, "market": 1,
	},
}

// classifyThreshold is the minimum share of total score the winning
// category must carry before a classification is trusted.
const classifyThreshold = 0.34

// Classifier assigns a lead one of six business categories from its name,
// domain, and the signals earlier stages collected. It makes no network
// calls.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

func (c *Classifier) Name() string { return "classifier" }

func (c *Classifier) Probe(_ context.Context, lead model.LeadRecord) (*Partial, error) {
	winner, _ := Classify(lead)
	if winner == model.TypeUnknown {
		return nil, nil
	}
	return &Partial{CompanyType: winner}, nil
}

// Classify scores every category and returns the winner with its
// confidence (the winner's share of the total score). Below-threshold or
// zero-signal leads come back unknown.
func Classify(lead model.LeadRecord) (model.CompanyType, float64) {
	scores := map[model.CompanyType]float64{}
	name := strings.ToLower(lead.Name)

	for typ, keywords := range typeKeywords {
		for word, weight := range keywords {
			if strings.Contains(name, word) {
				scores[typ] += weight
			}
		}
	}

	switch domainSuffix(lead.Website) {
	case ".edu":
		scores[model.TypeResearchInstitution] += 3
	case ".gov":
		scores[model.TypeGovernment] += 3
	case ".org":
		scores[model.TypeResearchInstitution]++
	}

	if lead.HasLinkedIn {
		scores[model.TypeEstablishedBusiness]++
	}
	if lead.HasCRM != nil && *lead.HasCRM {
		scores[model.TypeEstablishedBusiness]++
		scores[model.TypeLargeCompany]++
	}
	if len(strings.Split(lead.TechStack, ",")) >= 3 && lead.TechStack != "" {
		scores[model.TypeEstablishedBusiness]++
	}

	switch {
	case lead.EmployeeCount > 100:
		scores[model.TypeLargeCompany] += 3
	case lead.EmployeeCount > 50:
		scores[model.TypeLargeCompany]++
	case lead.EmployeeCount > 0:
		scores[model.TypeEstablishedBusiness]++
	}

	var winner model.CompanyType
	var best, total float64
	for _, typ := range []model.CompanyType{
		model.TypeResearchInstitution, model.TypeGovernment,
		model.TypeLargeCompany, model.TypeEstablishedBusiness,
		model.TypeFarm, model.TypeArtisanShop,
	} {
		s := scores[typ]
		total += s
		if s > best {
			best = s
			winner = typ
		}
	}

	if total == 0 {
		return model.TypeUnknown, 0
	}
	confidence := best / total
	if confidence < classifyThreshold {
		return model.TypeUnknown, confidence
	}
	return winner, confidence
}

func domainSuffix(website string) string {
	if website == "" {
		return ""
	}
	u, err := url.Parse(normalizeScheme(website))
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if idx := strings.LastIndex(host, "."); idx >= 0 {
		return host[idx:]
	}
	return ""
}
