package entity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are stripped from the end of a name during normalization.
// Ordered longest-variant-first so ", inc." wins over " inc".
var legalSuffixes = []string{
	", inc.", ", inc", " inc.", " inc",
	", llc", " llc",
	", ltd.", ", ltd", " ltd.", " ltd",
	", corp.", " corp.", ", corp", " corp",
	" co.", " co",
	" company", " companies",
	" group", " holdings", " international",
	", l.p.", " l.p.", " lp",
	" plc", ", plc",
	" sa", " ag", " nv", " se",
	" the",
}

// rejectedNames are placeholder tokens seen in labor-notice and court
// feeds that must never become Company rows.
var rejectedNames = map[string]bool{
	"unknown":        true,
	"tbd":            true,
	"confidential":   true,
	"multiple":       true,
	"various":        true,
	"n/a":            true,
	"na":             true,
	"none":           true,
	"pending":        true,
	"redacted":       true,
	"not available":  true,
	"see attachment": true,
}

// shortNameAllowlist permits legitimate 2-character brands through the
// minimum-length check.
var shortNameAllowlist = map[string]bool{
	"ge": true,
	"3m": true,
	"hp": true,
	"gm": true,
	"bp": true,
}

// usStateCodes covers the 50 states plus DC and territories.
var usStateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true,
	"CO": true, "CT": true, "DE": true, "FL": true, "GA": true,
	"HI": true, "ID": true, "IL": true, "IN": true, "IA": true,
	"KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true,
	"MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true,
	"OK": true, "OR": true, "PA": true, "RI": true, "SC": true,
	"SD": true, "TN": true, "TX": true, "UT": true, "VT": true,
	"VA": true, "WA": true, "WV": true, "WI": true, "WY": true,
	"DC": true, "PR": true, "VI": true, "GU": true, "AS": true,
	"MP": true,
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases a free-text company name, folds accents,
// strips legal-entity suffixes and punctuation, and collapses whitespace.
// The result is the key used for idempotent company lookup.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	if folded, _, err := transform.String(accentFolder, s); err == nil {
		s = folded
	}

	// Strip suffixes repeatedly: "Acme Holdings, Inc." loses both.
	for {
		stripped := false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSpace(s[:len(s)-len(suffix)])
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidateStateCode upper-cases and checks a two-letter US state or
// territory code. Invalid codes return "" so they are dropped rather
// than stored.
func ValidateStateCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if usStateCodes[c] {
		return c
	}
	return ""
}

// CleanValue trims a string extracted by the LLM and maps its null-ish
// spellings ("null", "none", "n/a") to empty.
func CleanValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return v
}
