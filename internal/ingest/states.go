package ingest

import "strings"

// stateCodes maps full US state names to their two-letter codes. The
// upstream registry is inconsistent about which form it uses.
var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

// NormalizeState converts a state value to its two-letter code. Unrecognized
// values are truncated and uppercased as a best-effort fallback.
func NormalizeState(state string) string {
	s := strings.TrimSpace(state)
	if s == "" {
		return ""
	}
	if code, ok := stateCodes[strings.ToLower(s)]; ok {
		return code
	}
	if len(s) > 2 {
		return strings.ToUpper(s[:2])
	}
	return strings.ToUpper(s)
}

// AllStateCodes returns the two-letter codes of the 50 states plus DC.
func AllStateCodes() []string {
	codes := make([]string, 0, len(stateCodes))
	for _, code := range stateCodes {
		codes = append(codes, code)
	}
	return codes
}
