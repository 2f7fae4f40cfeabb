package recurrence

import (
	"time"

	"github.com/arpatel/calendar-api/internal/model"
)

// maxOccurrences is a safety cap so a bad rule can never expand forever.
const maxOccurrences = 1000

// Expand computes the concrete occurrences of event inside the half-open
// window [windowStart, windowEnd). detached lists the original start times
// of occurrences that have been split off into exception events; those
// slots are not regenerated from the template.
//
// Expansion is pure: same inputs, same output, no side effects. An empty
// result is a normal outcome. Rules with an unknown type behave as
// non-recurring.
func Expand(event *model.Event, windowStart, windowEnd time.Time, detached []time.Time) []model.Occurrence {
	if event == nil || !windowStart.Before(windowEnd) {
		return nil
	}

	rule := event.Recurrence()
	if rule.Type == model.RecurrenceNone {
		occ := occurrenceAt(event, event.StartTime)
		if intersectsWindow(occ, windowStart, windowEnd) {
			return []model.Occurrence{occ}
		}
		return nil
	}

	skip := make(map[int64]struct{}, len(detached))
	for _, t := range detached {
		skip[t.Unix()] = struct{}{}
	}

	var out []model.Occurrence
	for i := 0; i < maxOccurrences; i++ {
		if event.RecurrenceCount != nil && i >= *event.RecurrenceCount {
			break
		}

		start := nthStart(event.StartTime, rule, i)
		if !start.Before(windowEnd) {
			break
		}
		if event.RecurrenceEndDate != nil && start.After(*event.RecurrenceEndDate) {
			break
		}

		if _, detachedSlot := skip[start.Unix()]; detachedSlot {
			continue
		}

		occ := occurrenceAt(event, start)
		if intersectsWindow(occ, windowStart, windowEnd) {
			out = append(out, occ)
		}
	}
	return out
}

// nthStart computes the i-th occurrence start from the series origin.
// Month and year steps are always taken from the origin, so a series
// starting Jan 31 lands on Feb 28, Mar 31, Apr 30 rather than drifting to
// the 28th forever after February.
func nthStart(origin time.Time, rule model.RecurrenceRule, i int) time.Time {
	step := i * rule.Interval
	switch rule.Type {
	case model.RecurrenceDaily:
		return origin.AddDate(0, 0, step)
	case model.RecurrenceWeekly:
		return origin.AddDate(0, 0, 7*step)
	case model.RecurrenceMonthly:
		return addMonthsClamped(origin, step)
	case model.RecurrenceYearly:
		return addMonthsClamped(origin, 12*step)
	}
	return origin
}

// addMonthsClamped advances by whole calendar months, clamping the day to
// the last valid day of the target month instead of letting it overflow
// (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year := t.Year()
	month := int(t.Month()) - 1 + months
	year += month / 12
	month = month % 12
	if month < 0 {
		month += 12
		year--
	}

	day := t.Day()
	if last := daysIn(year, time.Month(month+1)); day > last {
		day = last
	}

	return time.Date(year, time.Month(month+1), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func occurrenceAt(event *model.Event, start time.Time) model.Occurrence {
	occ := model.Occurrence{
		EventID:     event.ID,
		SeriesID:    event.SeriesID,
		Title:       event.Title,
		Description: event.Description,
		Priority:    event.Priority,
		Category:    event.Category,
		StartTime:   start,
		IsAllDay:    event.IsAllDay,
		IsException: event.IsException,
	}
	if event.EndTime != nil {
		end := start.Add(event.EndTime.Sub(event.StartTime))
		occ.EndTime = &end
	}
	return occ
}

func intersectsWindow(occ model.Occurrence, windowStart, windowEnd time.Time) bool {
	start, end := occ.Span()
	if !start.Before(windowEnd) {
		return false
	}
	if end.After(windowStart) {
		return true
	}
	// Zero-length occurrence sitting exactly on the window start.
	return start.Equal(end) && !start.Before(windowStart)
}

// DetachedTimes extracts the original slot starts from a series' exception
// events.
func DetachedTimes(exceptions []*model.Event) []time.Time {
	var out []time.Time
	for _, ex := range exceptions {
		if ex.ExceptionDate != nil {
			out = append(out, *ex.ExceptionDate)
		}
	}
	return out
}
