package aftercare

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// evergreenAgeYears is the whole-year record age beyond which anniversary
	// generation since the anchor date would be unbounded and meaningless.
	evergreenAgeYears = 10
	// evergreenLookahead bounds the perpetual forward-looking task stream.
	evergreenLookahead = 5
)

// evergreenInstances generates the next evergreenLookahead upcoming
// anniversaries for a long-tenured record, starting at yearsAgo+1.
//
// Template tasks are selected by cycling through the evergreen template's
// task list; each task's description carries its target calendar year.
// Anniversaries that are already past (clock skew at the boundary) are
// skipped without consuming a rotation slot.
func evergreenInstances(rec AnchorRecord, tpl TaskTemplate, yearsAgo int, now time.Time) []TaskInstance {
	if len(tpl.Tasks) == 0 {
		return nil
	}

	out := make([]TaskInstance, 0, evergreenLookahead)
	i := 0
	for offset := 1; offset <= evergreenLookahead; offset++ {
		year := yearsAgo + offset
		due := rec.AnchorDate.AddDate(year, 0, 0)
		if due.Before(now) {
			continue
		}

		task := tpl.Tasks[i%len(tpl.Tasks)]
		i++

		aftercareYear := year
		out = append(out, TaskInstance{
			ID:             uuid.NewString(),
			Title:          task.Title,
			Description:    annotateYear(task.Description, due.Year()),
			DueDate:        due,
			AnchorRecordID: rec.ID,
			AftercareYear:  &aftercareYear,
			AssignedTo:     rec.OwnerID,
		})
	}
	return out
}

func annotateYear(desc string, year int) string {
	if desc == "" {
		return fmt.Sprintf("Target year %d", year)
	}
	return fmt.Sprintf("%s (target year %d)", desc, year)
}
