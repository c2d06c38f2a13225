package address

import "strings"

// usCountryVariants maps the spellings buyers actually type to "US".
var usCountryVariants = map[string]string{
	"us":                       "US",
	"usa":                      "US",
	"u.s.":                     "US",
	"u.s.a.":                   "US",
	"united states":            "US",
	"united states of america": "US",
	"america":                  "US",
}

// usStateCodes maps full state names to their two-letter codes.
var usStateCodes = map[string]string{
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
	"puerto rico": "PR",
}

// NormalizeCountry collapses common USA spelling variants to "US". Other
// countries are uppercased and trimmed but otherwise passed through.
func NormalizeCountry(country string) string {
	key := strings.ToLower(strings.TrimSpace(country))
	if key == "" {
		return ""
	}
	if norm, ok := usCountryVariants[key]; ok {
		return norm
	}
	return strings.ToUpper(strings.TrimSpace(country))
}

// NormalizeState resolves a US state to its two-letter code. Inputs that are
// already codes are uppercased; unknown values are returned uppercased so
// comparisons stay case-insensitive.
func NormalizeState(state string) string {
	key := strings.ToLower(strings.TrimSpace(state))
	if code, ok := usStateCodes[key]; ok {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(state))
}

// NormalizePostal strips everything but letters and digits and uppercases,
// so "98101-2211" and "981012211" compare equal and prefixes match cleanly.
func NormalizePostal(postal string) string {
	var b strings.Builder
	for _, r := range postal {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCity lowercases and trims for case-insensitive comparison.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
