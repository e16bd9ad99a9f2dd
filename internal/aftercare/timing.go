package aftercare

import "time"

// ResolveDueDate converts a template task's timing rule plus an anchor date
// into a concrete due date and its aftercare year.
//
// A malformed timing configuration resolves to the anchor date itself with a
// nil aftercare year. Timing resolution is total; it never errors.
func ResolveDueDate(anchor time.Time, t TemplateTask) (time.Time, *int) {
	switch t.Timing {
	case TimingImmediate:
		year := 0
		return anchor.AddDate(0, 0, t.DaysOffset), &year
	case TimingAnniversary:
		year := t.AnniversaryYear
		return anchor.AddDate(t.AnniversaryYear, 0, 0), &year
	default:
		return anchor, nil
	}
}

// wholeYearsSince reports the number of complete years elapsed between anchor
// and now. Anchors in the future count as 0.
func wholeYearsSince(anchor, now time.Time) int {
	years := now.Year() - anchor.Year()
	if years > 0 && anchor.AddDate(years, 0, 0).After(now) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}
