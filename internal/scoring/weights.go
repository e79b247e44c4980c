package scoring

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights holds the point value of each scoring signal. Category weights
// may be negative; disqualifying categories carry no weight at all.
type Weights struct {
	EmployeeCountInRange    float64 `yaml:"employee_count_in_range" mapstructure:"employee_count_in_range"`
	EmailFound              float64 `yaml:"email_found" mapstructure:"email_found"`
	PhoneFound              float64 `yaml:"phone_found" mapstructure:"phone_found"`
	NoCRMDetected           float64 `yaml:"no_crm_detected" mapstructure:"no_crm_detected"`
	HasJobPostings          float64 `yaml:"has_job_postings" mapstructure:"has_job_postings"`
	HasWebsite              float64 `yaml:"has_website" mapstructure:"has_website"`
	BasicWebsite            float64 `yaml:"basic_website" mapstructure:"basic_website"`
	HasLinkedIn             float64 `yaml:"has_linkedin" mapstructure:"has_linkedin"`
	TypeEstablishedBusiness float64 `yaml:"type_established_business" mapstructure:"type_established_business"`
	TypeFarm                float64 `yaml:"type_farm" mapstructure:"type_farm"`
	TypeArtisanShop         float64 `yaml:"type_artisan_shop" mapstructure:"type_artisan_shop"`
}

// Employee count bounds for the target segment. Above the upper bound a
// lead is disqualified outright.
const (
	MinTargetEmployees = 5
	MaxTargetEmployees = 50
)

// DefaultWeights returns the standard weight table.
func DefaultWeights() Weights {
	return Weights{
		EmployeeCountInRange:    20,
		EmailFound:              15,
		PhoneFound:              10,
		NoCRMDetected:           10,
		HasJobPostings:          10,
		HasWebsite:              5,
		BasicWebsite:            5,
		HasLinkedIn:             5,
		TypeEstablishedBusiness: 10,
		TypeFarm:                0,
		TypeArtisanShop:         -5,
	}
}

// LoadWeights reads a YAML weight overlay on top of the defaults. An empty
// path returns the defaults unchanged.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return w, eris.Wrapf(err, "scoring: read weights file %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, eris.Wrapf(err, "scoring: parse weights file %s", path)
	}
	return w, nil
}
