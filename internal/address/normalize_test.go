package address

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   ", want: ""},
		{name: "lowercase trim", in: "  123 Queen Street  ", want: "123 queen street"},
		{name: "punctuation stripped", in: "123 Queen St., Auckland", want: "123 queen street auckland"},
		{name: "postcode stripped", in: "123 Queen Street, Auckland 1010", want: "123 queen street auckland"},
		{name: "country and postcode stripped", in: "123 Queen Street, Auckland 1010 NZ", want: "123 queen street auckland"},
		{name: "street type expanded", in: "45 Ponsonby Rd", want: "45 ponsonby road"},
		{name: "street type only whole words", in: "9 Stratford Ave", want: "9 stratford avenue"},
		{name: "unit slash preserved", in: "5/23 Main Rd", want: "5/23 main road"},
		{name: "unit prefix folded", in: "Unit 5 23 Main Rd", want: "5/23 main road"},
		{name: "flat prefix folded", in: "Flat 2, 10 Rose Lane", want: "2/10 rose lane"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	addrs := []string{
		"",
		"123 Queen Street, Auckland 1010 NZ",
		"Unit 5 23 Main Rd",
		"Flat 2, 10 Rose Lane, Remuera",
		"45 Ponsonby Rd",
		"23A Main Road",
		"garbage ~~ ### input",
	}
	for _, a := range addrs {
		once := Normalize(a)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", a, once, twice)
		}
	}
}

func TestExtractParts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Parts
	}{
		{in: "5/23 Main Road, Ponsonby", want: Parts{Unit: "5", Number: "23", Street: "main road"}},
		{in: "23A Main Road", want: Parts{Number: "23a", Street: "main road"}},
		{in: "Unit 5 23 Main Rd", want: Parts{Unit: "5", Number: "23", Street: "main road"}},
		{in: "Main Road", want: Parts{Street: "main road"}},
		{in: "", want: Parts{}},
	}
	for _, tt := range tests {
		got := ExtractParts(tt.in)
		if got != tt.want {
			t.Fatalf("ExtractParts(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
