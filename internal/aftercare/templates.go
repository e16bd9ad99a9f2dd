package aftercare

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Template files are YAML:
//
//	id: settlement-standard
//	stage: settled
//	evergreen: false
//	tasks:
//	  - title: Settlement day call
//	    timing: immediate
//	    days_offset: 1
//	  - title: First anniversary card
//	    timing: anniversary
//	    anniversary_year: 1
type templateFile struct {
	ID        string             `yaml:"id"`
	Stage     string             `yaml:"stage"`
	Evergreen bool               `yaml:"evergreen"`
	Tasks     []templateTaskFile `yaml:"tasks"`
}

type templateTaskFile struct {
	Title           string `yaml:"title"`
	Description     string `yaml:"description"`
	Timing          string `yaml:"timing"`
	DaysOffset      *int   `yaml:"days_offset"`
	AnniversaryYear *int   `yaml:"anniversary_year"`
}

// LoadTemplate reads and validates a template file. Unknown fields are
// rejected so typos surface at load time rather than as silently-default
// timing rules.
func LoadTemplate(path string) (TaskTemplate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return TaskTemplate{}, err
	}
	return parseTemplate(b, path)
}

func parseTemplate(b []byte, src string) (TaskTemplate, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var tf templateFile
	if err := dec.Decode(&tf); err != nil {
		return TaskTemplate{}, fmt.Errorf("%s: %w", src, err)
	}

	if strings.TrimSpace(tf.ID) == "" {
		return TaskTemplate{}, fmt.Errorf("%s: template id is required", src)
	}
	if len(tf.Tasks) == 0 {
		return TaskTemplate{}, fmt.Errorf("%s: %w", src, ErrNoTasks)
	}

	tpl := TaskTemplate{
		ID:        strings.TrimSpace(tf.ID),
		Stage:     strings.TrimSpace(tf.Stage),
		Evergreen: tf.Evergreen,
		Tasks:     make([]TemplateTask, 0, len(tf.Tasks)),
	}

	for i, tt := range tf.Tasks {
		if strings.TrimSpace(tt.Title) == "" {
			return TaskTemplate{}, fmt.Errorf("%s: tasks[%d]: title is required", src, i)
		}
		timing, err := ParseTimingType(tt.Timing)
		if err != nil {
			return TaskTemplate{}, fmt.Errorf("%s: tasks[%d]: %w", src, i, err)
		}

		task := TemplateTask{
			Title:       strings.TrimSpace(tt.Title),
			Description: strings.TrimSpace(tt.Description),
			Timing:      timing,
		}

		// Exactly one of days_offset/anniversary_year is meaningful,
		// selected by the timing type.
		switch timing {
		case TimingImmediate:
			if tt.AnniversaryYear != nil {
				return TaskTemplate{}, fmt.Errorf("%s: tasks[%d]: anniversary_year is not valid for immediate timing", src, i)
			}
			if tt.DaysOffset == nil || *tt.DaysOffset < 0 {
				return TaskTemplate{}, fmt.Errorf("%s: tasks[%d]: immediate timing requires days_offset >= 0", src, i)
			}
			task.DaysOffset = *tt.DaysOffset
		case TimingAnniversary:
			if tt.DaysOffset != nil {
				return TaskTemplate{}, fmt.Errorf("%s: tasks[%d]: days_offset is not valid for anniversary timing", src, i)
			}
			if tt.AnniversaryYear == nil || *tt.AnniversaryYear < 1 {
				return TaskTemplate{}, fmt.Errorf("%s: tasks[%d]: anniversary timing requires anniversary_year >= 1", src, i)
			}
			task.AnniversaryYear = *tt.AnniversaryYear
		}

		tpl.Tasks = append(tpl.Tasks, task)
	}

	return tpl, nil
}
