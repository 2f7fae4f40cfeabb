package recurrence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpatel/calendar-api/internal/model"
)

func newEvent(start time.Time, duration time.Duration, rtype model.RecurrenceType, interval int) *model.Event {
	end := start.Add(duration)
	e := &model.Event{
		Base:               model.Base{ID: uuid.New()},
		OwnerKind:          "user",
		OwnerID:            uuid.New(),
		Title:              "standup",
		StartTime:          start,
		EndTime:            &end,
		Status:             model.EventStatusScheduled,
		Priority:           model.PriorityMedium,
		RecurrenceType:     rtype,
		RecurrenceInterval: interval,
	}
	e.Normalize()
	return e
}

func TestExpandNonRecurring(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceNone, 0)

	occs := Expand(event, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1), nil)
	require.Len(t, occs, 1)
	assert.Equal(t, event.ID, occs[0].EventID)
	assert.True(t, occs[0].StartTime.Equal(start))

	occs = Expand(event, start.AddDate(0, 0, 5), start.AddDate(0, 0, 6), nil)
	assert.Empty(t, occs)
}

func TestExpandDaily(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	event := newEvent(start, 30*time.Minute, model.RecurrenceDaily, 2)

	occs := Expand(event, start, start.AddDate(0, 0, 10), nil)
	require.Len(t, occs, 5)
	for i, occ := range occs {
		want := start.AddDate(0, 0, 2*i)
		assert.True(t, occ.StartTime.Equal(want), "occurrence %d: got %v want %v", i, occ.StartTime, want)
		require.NotNil(t, occ.EndTime)
		assert.Equal(t, 30*time.Minute, occ.EndTime.Sub(occ.StartTime))
	}
}

func TestExpandOrderedNoDuplicates(t *testing.T) {
	start := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceWeekly, 1)

	occs := Expand(event, start.AddDate(0, -1, 0), start.AddDate(1, 0, 0), nil)
	require.NotEmpty(t, occs)

	seen := make(map[int64]bool)
	for i := 1; i < len(occs); i++ {
		assert.True(t, occs[i-1].StartTime.Before(occs[i].StartTime), "occurrences must be strictly ordered")
	}
	for _, occ := range occs {
		assert.False(t, seen[occ.StartTime.Unix()], "duplicate occurrence at %v", occ.StartTime)
		seen[occ.StartTime.Unix()] = true
	}
}

func TestExpandMonthlyClampsEndOfMonth(t *testing.T) {
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceMonthly, 1)

	occs := Expand(event, start, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)
	require.Len(t, occs, 4)

	want := []time.Time{
		time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 10, 0, 0, 0, time.UTC),
	}
	for i, w := range want {
		assert.True(t, occs[i].StartTime.Equal(w), "occurrence %d: got %v want %v", i, occs[i].StartTime, w)
	}
}

func TestExpandMonthlyClampLeapYear(t *testing.T) {
	start := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceMonthly, 1)

	occs := Expand(event, start, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil)
	require.Len(t, occs, 2)
	assert.Equal(t, 29, occs[1].StartTime.Day())
}

func TestExpandYearlyFeb29Clamps(t *testing.T) {
	start := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceYearly, 1)

	occs := Expand(event, start, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.Len(t, occs, 2)
	assert.True(t, occs[1].StartTime.Equal(time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)))
}

func TestExpandCountCap(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceDaily, 1)
	count := 3
	event.RecurrenceCount = &count

	occs := Expand(event, start, start.AddDate(1, 0, 0), nil)
	assert.Len(t, occs, 3)
}

func TestExpandRecurrenceEndDate(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceDaily, 1)
	until := start.AddDate(0, 0, 4)
	event.RecurrenceEndDate = &until

	occs := Expand(event, start, start.AddDate(1, 0, 0), nil)
	// Days 0 through 4 inclusive.
	assert.Len(t, occs, 5)
}

func TestExpandSkipsDetachedSlots(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceWeekly, 1)

	detached := []time.Time{start.AddDate(0, 0, 7)}
	occs := Expand(event, start, start.AddDate(0, 0, 21), detached)
	require.Len(t, occs, 2)
	assert.True(t, occs[0].StartTime.Equal(start))
	assert.True(t, occs[1].StartTime.Equal(start.AddDate(0, 0, 14)))
}

func TestExpandUnknownTypeBehavesAsNone(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceType("fortnightly"), 1)

	occs := Expand(event, start, start.AddDate(0, 1, 0), nil)
	assert.Len(t, occs, 1)
}

func TestExpandWindowBounds(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceDaily, 1)

	// Window covering only days 5..7 (half-open).
	wStart := start.AddDate(0, 0, 5)
	wEnd := start.AddDate(0, 0, 8)
	occs := Expand(event, wStart, wEnd, nil)
	require.Len(t, occs, 3)
	assert.True(t, occs[0].StartTime.Equal(wStart))

	// Inverted window yields nothing.
	assert.Empty(t, Expand(event, wEnd, wStart, nil))
}

func TestExpandDeterministic(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceMonthly, 2)

	a := Expand(event, start, start.AddDate(2, 0, 0), nil)
	b := Expand(event, start, start.AddDate(2, 0, 0), nil)
	assert.Equal(t, a, b)
}

func TestExpandTerminatesWithoutEndConditions(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	event := newEvent(start, time.Hour, model.RecurrenceDaily, 1)

	// Unbounded rule, huge window: the safety cap still terminates it.
	occs := Expand(event, start, start.AddDate(50, 0, 0), nil)
	assert.Len(t, occs, 1000)
}
