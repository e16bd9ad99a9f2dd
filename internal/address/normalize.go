package address

import (
	"regexp"
	"strings"
)

// streetTypes expands abbreviated street-type tokens. Only whole-word matches
// in a street-type slot (never the leading number token) are replaced.
var streetTypes = map[string]string{
	"st":   "street",
	"rd":   "road",
	"ave":  "avenue",
	"av":   "avenue",
	"dr":   "drive",
	"cres": "crescent",
	"cr":   "crescent",
	"ct":   "court",
	"pl":   "place",
	"tce":  "terrace",
	"hwy":  "highway",
	"ln":   "lane",
	"blvd": "boulevard",
	"pde":  "parade",
	"gr":   "grove",
	"esp":  "esplanade",
	"cl":   "close",
}

// countrySuffixes are stripped from the tail before postcode stripping, so
// "… Auckland 1010 NZ" and "… auckland" normalize the same way.
var countrySuffixes = []string{"new zealand", "nz", "aotearoa"}

var (
	punctRe      = regexp.MustCompile(`[^a-z0-9/ ]+`)
	spaceRe      = regexp.MustCompile(`\s+`)
	postcodeRe   = regexp.MustCompile(` [0-9]{4}$`)
	unitPrefixRe = regexp.MustCompile(`^(?:unit|flat|apartment|apt) ([0-9]+[a-z]?) `)
)

// Normalize canonicalizes a free-text address into a comparable form.
//
// It is a total function: malformed input never errors, and empty input
// normalizes to the empty string. Normalize is idempotent.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// Strip punctuation except the unit separator, then collapse whitespace.
	s = punctRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))

	// Trailing country suffix, then trailing 4-digit postcode.
	for _, c := range countrySuffixes {
		s = strings.TrimSuffix(s, " "+c)
	}
	s = postcodeRe.ReplaceAllString(s, "")

	// Expand abbreviated street types (whole word, never the first token).
	toks := strings.Fields(s)
	for i := 1; i < len(toks); i++ {
		if full, ok := streetTypes[toks[i]]; ok {
			toks[i] = full
		}
	}
	s = strings.Join(toks, " ")

	// Fold a leading "unit 5 23 …" prefix into the "5/23 …" form.
	s = unitPrefixRe.ReplaceAllString(s, "$1/")

	return s
}

// Parts is the structural decomposition of an address head (everything before
// the first comma). Missing components are empty strings.
type Parts struct {
	Unit   string
	Number string
	Street string
}

var partsRe = regexp.MustCompile(`^(?:([0-9]+[a-z]?)/)?([0-9]+[a-z]?) (.+)$`)

// ExtractParts parses a leading "unit/number" or "number" token followed by a
// street name. Anything after the first comma (suburb, region, country) is
// not part of the street and is ignored here.
func ExtractParts(s string) Parts {
	head := s
	if i := strings.Index(s, ","); i >= 0 {
		head = s[:i]
	}
	n := Normalize(head)
	if n == "" {
		return Parts{}
	}
	m := partsRe.FindStringSubmatch(n)
	if m == nil {
		// No leading number; treat the whole head as a street name.
		return Parts{Street: n}
	}
	return Parts{Unit: m[1], Number: m[2], Street: m[3]}
}

// suburbOf returns the normalized second comma-delimited segment (postcode
// and country stripped), or "" when the address has no such segment.
func suburbOf(s string) string {
	segs := strings.SplitN(s, ",", 3)
	if len(segs) < 2 {
		return ""
	}
	return Normalize(segs[1])
}
