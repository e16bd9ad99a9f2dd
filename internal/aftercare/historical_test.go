package aftercare

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	tests := []struct {
		name string
		due  time.Time
		mode HistoricalMode
		want Disposition
	}{
		{"future ignores skip mode", future, ModeSkip, DispositionNormal},
		{"future ignores complete mode", future, ModeComplete, DispositionNormal},
		{"due exactly now is not past", now, ModeSkip, DispositionNormal},
		{"past skip", past, ModeSkip, DispositionSkip},
		{"past complete", past, ModeComplete, DispositionComplete},
		{"past include", past, ModeInclude, DispositionNormal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.due, now, tt.mode); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHistoricalMode(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"skip", "Complete", " INCLUDE "} {
		if _, err := ParseHistoricalMode(ok); err != nil {
			t.Fatalf("ParseHistoricalMode(%q) error: %v", ok, err)
		}
	}
	if _, err := ParseHistoricalMode("delete"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
