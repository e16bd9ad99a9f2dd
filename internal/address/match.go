package address

import (
	"math"
	"strings"
)

// Confidence is a four-tier classification derived from a match score.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Score point budget.
const (
	maxScore          = 100
	pointsNumberExact = 40
	pointsNumberNear  = 25 // same number after stripping a trailing letter ("23" vs "23a")
	pointsStreet      = 40
	pointsUnitMatch   = 20
	pointsUnitAbsent  = 10
	pointsSuburb      = 10

	ownerBoostMax = 10
	emailBoost    = 15
)

// Record is an immutable address-bearing input record. Owner fields are
// optional auxiliary match signals.
type Record struct {
	ID         string
	Address    string
	OwnerName  string
	OwnerEmail string
}

// Match links one source record to its single best-scoring target.
type Match struct {
	SourceID      string
	SourceAddress string
	TargetID      string
	TargetAddress string
	Score         int
	Confidence    Confidence
}

// ConfidenceFor maps a 0..100 score onto a confidence tier.
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 95:
		return ConfidenceHigh
	case score >= 80:
		return ConfidenceMedium
	case score >= 60:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// Score estimates how likely two free-text addresses refer to the same
// property. The result is clamped to [0,100].
//
// An empty (or fully punctuation) address on either side scores 0: there is
// nothing to compare, and reporting two blanks as a high-confidence match
// would only pollute downstream reconciliation.
func Score(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return maxScore
	}

	pa, pb := ExtractParts(a), ExtractParts(b)
	score := 0

	switch {
	case pa.Number != "" && pa.Number == pb.Number:
		score += pointsNumberExact
	case pa.Number != "" && pb.Number != "" && stripLetterSuffix(pa.Number) == stripLetterSuffix(pb.Number):
		score += pointsNumberNear
	}

	if pa.Street != "" && pa.Street == pb.Street {
		score += pointsStreet
	} else {
		score += int(math.Round(pointsStreet * similarity(pa.Street, pb.Street)))
	}

	if pa.Unit != "" && pa.Unit == pb.Unit {
		score += pointsUnitMatch
	} else if pa.Unit == "" && pb.Unit == "" {
		score += pointsUnitAbsent
	}

	if sa := suburbOf(a); sa != "" && sa == suburbOf(b) {
		score += pointsSuburb
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// MatchSets links each source record to its single best-scoring target.
//
// The base address score is boosted by up to +10 for owner-name similarity
// and a flat +15 for an exact case-insensitive email match, re-clamped to 100.
// Pairs whose confidence is "none" are omitted rather than reported.
//
// Complexity is O(|source|*|target|). That is fine for batch/offline
// reconciliation of tens to low hundreds of records; it is not a real-time
// large-N matcher.
func MatchSets(source, target []Record) []Match {
	out := make([]Match, 0, len(source))
	for _, src := range source {
		var best Match
		found := false
		for _, tgt := range target {
			sc := boostedScore(src, tgt)
			if !found || sc > best.Score {
				best = Match{
					SourceID:      src.ID,
					SourceAddress: src.Address,
					TargetID:      tgt.ID,
					TargetAddress: tgt.Address,
					Score:         sc,
				}
				found = true
			}
		}
		if !found {
			continue
		}
		best.Confidence = ConfidenceFor(best.Score)
		if best.Confidence == ConfidenceNone {
			continue
		}
		out = append(out, best)
	}
	return out
}

func boostedScore(src, tgt Record) int {
	sc := Score(src.Address, tgt.Address)

	if src.OwnerName != "" && tgt.OwnerName != "" {
		a := strings.ToLower(strings.TrimSpace(src.OwnerName))
		b := strings.ToLower(strings.TrimSpace(tgt.OwnerName))
		sc += int(math.Round(ownerBoostMax * similarity(a, b)))
		if sc > maxScore {
			sc = maxScore
		}
	}

	se := strings.TrimSpace(src.OwnerEmail)
	te := strings.TrimSpace(tgt.OwnerEmail)
	if se != "" && te != "" && strings.EqualFold(se, te) {
		sc += emailBoost
		if sc > maxScore {
			sc = maxScore
		}
	}

	return sc
}

// stripLetterSuffix drops a single trailing letter from a street number
// ("23a" -> "23") so adjoining subdivisions still get partial credit.
func stripLetterSuffix(n string) string {
	if len(n) >= 2 {
		last := n[len(n)-1]
		if last >= 'a' && last <= 'z' {
			return n[:len(n)-1]
		}
	}
	return n
}

// similarity is a Levenshtein-derived ratio in [0,1].
// Two empty strings are identical by convention (1.0).
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance over runes with a two-row DP.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
