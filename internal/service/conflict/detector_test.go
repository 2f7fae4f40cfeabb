package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpatel/calendar-api/internal/model"
)

type fakeEventRepo struct {
	events     []*model.Event
	exceptions map[uuid.UUID][]*model.Event
}

func (f *fakeEventRepo) Create(ctx context.Context, event *model.Event) error { return nil }
func (f *fakeEventRepo) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return nil, nil
}
func (f *fakeEventRepo) Update(ctx context.Context, event *model.Event) error   { return nil }
func (f *fakeEventRepo) SoftDelete(ctx context.Context, id uuid.UUID) error     { return nil }
func (f *fakeEventRepo) List(ctx context.Context, filters *model.EventFilters) ([]*model.Event, error) {
	return f.events, nil
}
func (f *fakeEventRepo) ListByOwnerInWindow(ctx context.Context, ownerKind string, ownerID uuid.UUID, start, end time.Time) ([]*model.Event, error) {
	var out []*model.Event
	for _, ev := range f.events {
		if ev.OwnerKind == ownerKind && ev.OwnerID == ownerID {
			out = append(out, ev)
		}
	}
	return out, nil
}
func (f *fakeEventRepo) ListExceptions(ctx context.Context, seriesID uuid.UUID) ([]*model.Event, error) {
	return f.exceptions[seriesID], nil
}
func (f *fakeEventRepo) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status model.EventStatus) (int64, error) {
	return 0, nil
}
func (f *fakeEventRepo) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error { return fn(nil) }
func (f *fakeEventRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, event *model.Event) error {
	return nil
}

func event(owner uuid.UUID, start time.Time, duration time.Duration, status model.EventStatus) *model.Event {
	end := start.Add(duration)
	e := &model.Event{
		Base:           model.Base{ID: uuid.New()},
		OwnerKind:      "user",
		OwnerID:        owner,
		Title:          "meeting",
		StartTime:      start,
		EndTime:        &end,
		Status:         status,
		Priority:       model.PriorityMedium,
		RecurrenceType: model.RecurrenceNone,
	}
	e.Normalize()
	return e
}

func TestFindConflictsOverlap(t *testing.T) {
	owner := uuid.New()
	day := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	existing := event(owner, day.Add(10*time.Hour), time.Hour, model.EventStatusScheduled)

	d := NewDetector(&fakeEventRepo{events: []*model.Event{existing}})

	// [10:00,11:00) vs candidate [10:30,11:30) overlaps.
	conflicts, err := d.FindConflicts(context.Background(), "user", owner,
		day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, existing.ID, conflicts[0].Event.ID)
}

func TestFindConflictsTouchingDoesNotOverlap(t *testing.T) {
	owner := uuid.New()
	day := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	existing := event(owner, day.Add(10*time.Hour), time.Hour, model.EventStatusScheduled)

	d := NewDetector(&fakeEventRepo{events: []*model.Event{existing}})

	// [10:00,11:00) vs candidate [11:00,12:00): touching endpoints.
	conflicts, err := d.FindConflicts(context.Background(), "user", owner,
		day.Add(11*time.Hour), day.Add(12*time.Hour), nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindConflictsIgnoresCancelledAndCompleted(t *testing.T) {
	owner := uuid.New()
	day := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	cancelled := event(owner, day.Add(10*time.Hour), time.Hour, model.EventStatusCancelled)
	completed := event(owner, day.Add(10*time.Hour), time.Hour, model.EventStatusCompleted)

	d := NewDetector(&fakeEventRepo{events: []*model.Event{cancelled, completed}})

	conflicts, err := d.FindConflicts(context.Background(), "user", owner,
		day.Add(10*time.Hour), day.Add(12*time.Hour), nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindConflictsExcludesEditedEvent(t *testing.T) {
	owner := uuid.New()
	day := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	existing := event(owner, day.Add(10*time.Hour), time.Hour, model.EventStatusScheduled)

	d := NewDetector(&fakeEventRepo{events: []*model.Event{existing}})

	conflicts, err := d.FindConflicts(context.Background(), "user", owner,
		day.Add(10*time.Hour), day.Add(11*time.Hour), &existing.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindConflictsAgainstLaterRecurrence(t *testing.T) {
	owner := uuid.New()
	// Weekly series starting Monday 09:00.
	seriesStart := time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	series := event(owner, seriesStart, time.Hour, model.EventStatusScheduled)
	series.RecurrenceType = model.RecurrenceWeekly
	series.RecurrenceInterval = 1
	series.Normalize()

	d := NewDetector(&fakeEventRepo{events: []*model.Event{series}})

	// Candidate three weeks out collides with the expanded occurrence,
	// not the template's first start.
	candidate := seriesStart.AddDate(0, 0, 21)
	conflicts, err := d.FindConflicts(context.Background(), "user", owner,
		candidate.Add(30*time.Minute), candidate.Add(90*time.Minute), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.True(t, conflicts[0].Occurrence.StartTime.Equal(candidate))
}

func TestFindConflictsSkipsDetachedOccurrence(t *testing.T) {
	owner := uuid.New()
	seriesStart := time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	series := event(owner, seriesStart, time.Hour, model.EventStatusScheduled)
	series.RecurrenceType = model.RecurrenceWeekly
	series.RecurrenceInterval = 1
	series.Normalize()

	detachedSlot := seriesStart.AddDate(0, 0, 7)
	exception := event(owner, detachedSlot.Add(3*time.Hour), time.Hour, model.EventStatusScheduled)
	exception.IsException = true
	exception.SeriesID = &series.ID
	exception.ExceptionDate = &detachedSlot

	d := NewDetector(&fakeEventRepo{
		events:     []*model.Event{series, exception},
		exceptions: map[uuid.UUID][]*model.Event{series.ID: {exception}},
	})

	// The detached slot no longer conflicts.
	conflicts, err := d.FindConflicts(context.Background(), "user", owner,
		detachedSlot, detachedSlot.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// The moved exception does, at its new time.
	conflicts, err = d.FindConflicts(context.Background(), "user", owner,
		detachedSlot.Add(3*time.Hour), detachedSlot.Add(4*time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, exception.ID, conflicts[0].Event.ID)
}

func TestFindConflictsDifferentOwner(t *testing.T) {
	ownerA := uuid.New()
	ownerB := uuid.New()
	day := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	existing := event(ownerA, day.Add(10*time.Hour), time.Hour, model.EventStatusScheduled)

	d := NewDetector(&fakeEventRepo{events: []*model.Event{existing}})

	conflicts, err := d.FindConflicts(context.Background(), "user", ownerB,
		day.Add(10*time.Hour), day.Add(11*time.Hour), nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}
