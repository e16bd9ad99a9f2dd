package aftercare

import (
	"strings"
	"testing"
)

const goodTemplateYAML = `
id: settlement-standard
stage: settled
tasks:
  - title: Settlement day call
    description: Call the new owners
    timing: immediate
    days_offset: 1
  - title: First anniversary card
    timing: anniversary
    anniversary_year: 1
`

func TestParseTemplate(t *testing.T) {
	t.Parallel()
	tpl, err := parseTemplate([]byte(goodTemplateYAML), "test")
	if err != nil {
		t.Fatalf("parseTemplate: %v", err)
	}
	if tpl.ID != "settlement-standard" || tpl.Stage != "settled" {
		t.Fatalf("unexpected template header: %+v", tpl)
	}
	if len(tpl.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tpl.Tasks))
	}
	if tpl.Tasks[0].Timing != TimingImmediate || tpl.Tasks[0].DaysOffset != 1 {
		t.Fatalf("unexpected first task: %+v", tpl.Tasks[0])
	}
	if tpl.Tasks[1].Timing != TimingAnniversary || tpl.Tasks[1].AnniversaryYear != 1 {
		t.Fatalf("unexpected second task: %+v", tpl.Tasks[1])
	}
}

func TestParseTemplateRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing id",
			yaml: "tasks:\n  - title: x\n    timing: immediate\n    days_offset: 0\n",
		},
		{
			name: "no tasks",
			yaml: "id: t\ntasks: []\n",
		},
		{
			name: "unknown timing",
			yaml: "id: t\ntasks:\n  - title: x\n    timing: eventually\n",
		},
		{
			name: "both offsets set",
			yaml: "id: t\ntasks:\n  - title: x\n    timing: anniversary\n    anniversary_year: 1\n    days_offset: 3\n",
		},
		{
			name: "anniversary year below one",
			yaml: "id: t\ntasks:\n  - title: x\n    timing: anniversary\n    anniversary_year: 0\n",
		},
		{
			name: "unknown field",
			yaml: "id: t\nsurprise: true\ntasks:\n  - title: x\n    timing: immediate\n    days_offset: 0\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseTemplate([]byte(tt.yaml), "test"); err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadTemplateMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadTemplate("does/not/exist.yaml")
	if err == nil || !strings.Contains(err.Error(), "exist") {
		t.Fatalf("expected file error, got %v", err)
	}
}
