package address

import "testing"

func TestScoreExactMatch(t *testing.T) {
	t.Parallel()
	got := Score("123 Queen Street, Auckland", "123 queen st auckland")
	if got != 100 {
		t.Fatalf("expected exact-match score 100, got %d", got)
	}
	if c := ConfidenceFor(got); c != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", c)
	}
}

func TestScoreNumberSuffixTolerance(t *testing.T) {
	t.Parallel()
	got := Score("23 Main Road", "23A Main Road")
	if got < 60 || got > 85 {
		t.Fatalf("expected score in [60,85] for number-suffix partial credit, got %d", got)
	}
}

func TestScoreSymmetry(t *testing.T) {
	t.Parallel()
	a, b := "12 Smith Street", "12 Smith St"
	if Score(a, b) != Score(b, a) {
		t.Fatalf("score not symmetric: %d vs %d", Score(a, b), Score(b, a))
	}
}

func TestScoreStreetSimilarity(t *testing.T) {
	t.Parallel()
	// "main road" vs "maine road": lev 1 over 10 runes -> 36 street points.
	got := Score("23 Main Road", "23 Maine Road")
	want := 40 + 36 + 10
	if got != want {
		t.Fatalf("Score = %d, want %d", got, want)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	t.Parallel()
	if got := Score("", "123 Queen Street"); got != 0 {
		t.Fatalf("empty source should score 0, got %d", got)
	}
	if got := Score("", ""); got != 0 {
		t.Fatalf("two empty addresses should score 0, got %d", got)
	}
}

func TestConfidenceFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		score int
		want  Confidence
	}{
		{100, ConfidenceHigh},
		{95, ConfidenceHigh},
		{94, ConfidenceMedium},
		{80, ConfidenceMedium},
		{79, ConfidenceLow},
		{60, ConfidenceLow},
		{59, ConfidenceNone},
		{0, ConfidenceNone},
	}
	for _, tt := range tests {
		if got := ConfidenceFor(tt.score); got != tt.want {
			t.Fatalf("ConfidenceFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestMatchSetsKeepsBestTargetOnly(t *testing.T) {
	t.Parallel()
	source := []Record{{ID: "s1", Address: "23 Main Road, Ponsonby"}}
	target := []Record{
		{ID: "t1", Address: "23A Main Road, Ponsonby"},
		{ID: "t2", Address: "23 Main Rd, Ponsonby"},
		{ID: "t3", Address: "99 Somewhere Else"},
	}

	got := MatchSets(source, target)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].TargetID != "t2" {
		t.Fatalf("expected best target t2, got %s (score %d)", got[0].TargetID, got[0].Score)
	}
	if got[0].Score != 100 || got[0].Confidence != ConfidenceHigh {
		t.Fatalf("unexpected best match: %+v", got[0])
	}
}

func TestMatchSetsOmitsNoConfidence(t *testing.T) {
	t.Parallel()
	source := []Record{{ID: "s1", Address: "1 Alpha Street"}}
	target := []Record{{ID: "t1", Address: "999 Omega Crescent, Elsewhere"}}

	if got := MatchSets(source, target); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestMatchSetsEmailBoost(t *testing.T) {
	t.Parallel()
	source := []Record{{ID: "s1", Address: "10 Rose Lane", OwnerEmail: "jan@example.com"}}
	target := []Record{{ID: "t1", Address: "10 Rose Lane, Remuera", OwnerEmail: "JAN@EXAMPLE.COM"}}

	got := MatchSets(source, target)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	// 90 base (number+street+no units) + 15 email, clamped to 100.
	if got[0].Score != 100 || got[0].Confidence != ConfidenceHigh {
		t.Fatalf("expected clamped boosted score 100/high, got %+v", got[0])
	}
}

func TestMatchSetsOwnerNameBoost(t *testing.T) {
	t.Parallel()
	source := []Record{{ID: "s1", Address: "23 Main Road", OwnerName: "Sam Harper"}}
	target := []Record{{ID: "t1", Address: "23A Main Road", OwnerName: "Sam Harper"}}

	got := MatchSets(source, target)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	// 75 base + 10 identical owner name.
	if got[0].Score != 85 {
		t.Fatalf("expected boosted score 85, got %d", got[0].Score)
	}
	if got[0].Confidence != ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %s", got[0].Confidence)
	}
}
