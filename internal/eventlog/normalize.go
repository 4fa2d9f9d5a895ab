package eventlog

import (
	"strings"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeNewsletter maps the loose opt-in vocabulary to "Y", "N" or "" (unknown).
func NormalizeNewsletter(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "sí", "si", "y":
		return "Y"
	case "false", "0", "no", "n":
		return "N"
	default:
		return ""
	}
}

// Normalizer cleans up location and name fields before they reach the log.
type Normalizer struct {
	countries *gountries.Query
}

func NewNormalizer() *Normalizer {
	return &Normalizer{countries: gountries.New()}
}

// Location splits a combined "Region, Country" value and canonicalises the
// country. An explicit region always wins over one found in the country field.
func (n *Normalizer) Location(country, region string) (string, string) {
	country = strings.TrimSpace(country)
	region = strings.TrimSpace(region)

	if i := strings.LastIndex(country, ","); i >= 0 {
		embedded := strings.TrimSpace(country[:i])
		country = strings.TrimSpace(country[i+1:])
		if region == "" {
			region = embedded
		}
	}
	return n.Country(country), region
}

// Country returns the common English name for an ISO code or a known country
// name. Anything unrecognised is returned trimmed but otherwise untouched.
func (n *Normalizer) Country(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if isCountryCode(v) {
		if c, err := n.countries.FindCountryByAlpha(v); err == nil {
			return c.Name.Common
		}
		return v
	}
	if c, err := n.countries.FindCountryByName(v); err == nil {
		return c.Name.Common
	}
	return v
}

// LastName title-cases a surname using Spanish casing rules.
func (n *Normalizer) LastName(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	if v == "" {
		return ""
	}
	// Casers are stateful and must not be shared between goroutines.
	return cases.Title(language.Spanish).String(v)
}

// isCountryCode accepts upper-case alpha-2 and alpha-3 codes only, so a short
// name like "Peru" is never read as a code.
func isCountryCode(v string) bool {
	if len(v) != 2 && len(v) != 3 {
		return false
	}
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
