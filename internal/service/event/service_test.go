package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/service/conflict"
	"github.com/arpatel/calendar-api/internal/service/scheduler"
	"github.com/arpatel/calendar-api/pkg/clock"
	apperrors "github.com/arpatel/calendar-api/pkg/errors"
	"github.com/arpatel/calendar-api/pkg/logger"
)

type memEventStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*model.Event
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: make(map[uuid.UUID]*model.Event)}
}

func (s *memEventStore) Create(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *event
	s.events[event.ID] = &row
	return nil
}

func (s *memEventStore) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.events[id]
	if !ok || row.DeletedAt != nil {
		return nil, apperrors.NotFound("event", nil)
	}
	snapshot := *row
	return &snapshot, nil
}

func (s *memEventStore) Update(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *event
	s.events[event.ID] = &row
	return nil
}

func (s *memEventStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.events[id]; ok {
		now := time.Now()
		row.DeletedAt = &now
	}
	return nil
}

func (s *memEventStore) List(ctx context.Context, _ *model.EventFilters) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Event
	for _, row := range s.events {
		if row.DeletedAt == nil {
			snapshot := *row
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (s *memEventStore) ListByOwnerInWindow(ctx context.Context, ownerKind string, ownerID uuid.UUID, start, end time.Time) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Event
	for _, row := range s.events {
		if row.DeletedAt != nil || row.OwnerKind != ownerKind || row.OwnerID != ownerID {
			continue
		}
		snapshot := *row
		out = append(out, &snapshot)
	}
	return out, nil
}

func (s *memEventStore) ListExceptions(ctx context.Context, seriesID uuid.UUID) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Event
	for _, row := range s.events {
		if row.IsException && row.SeriesID != nil && *row.SeriesID == seriesID && row.DeletedAt == nil {
			snapshot := *row
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (s *memEventStore) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status model.EventStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if row, ok := s.events[id]; ok && row.DeletedAt == nil {
			row.Status = status
			n++
		}
	}
	return n, nil
}

func (s *memEventStore) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error { return fn(nil) }

func (s *memEventStore) UpdateTx(ctx context.Context, tx *sqlx.Tx, event *model.Event) error {
	return s.Update(ctx, event)
}

type memAttendeeStore struct {
	mu        sync.Mutex
	attendees map[uuid.UUID][]*model.Attendee
}

func newMemAttendeeStore() *memAttendeeStore {
	return &memAttendeeStore{attendees: make(map[uuid.UUID][]*model.Attendee)}
}

func (s *memAttendeeStore) Upsert(ctx context.Context, a *model.Attendee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attendees[a.EventID] {
		if existing.UserID == a.UserID {
			*existing = *a
			return nil
		}
	}
	row := *a
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	s.attendees[a.EventID] = append(s.attendees[a.EventID], &row)
	return nil
}

func (s *memAttendeeStore) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Attendee(nil), s.attendees[eventID]...), nil
}

func (s *memAttendeeStore) Delete(ctx context.Context, eventID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.attendees[eventID][:0]
	for _, a := range s.attendees[eventID] {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	s.attendees[eventID] = kept
	return nil
}

// memNotifStore mirrors the postgres store's state machine closely enough
// for orchestration tests.
type memNotifStore struct {
	mu   sync.Mutex
	rows map[model.NotificationKey]*model.Notification
}

func newMemNotifStore() *memNotifStore {
	return &memNotifStore{rows: make(map[model.NotificationKey]*model.Notification)}
}

func (s *memNotifStore) UpsertPending(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := n.Key()
	if existing, ok := s.rows[key]; ok {
		if existing.Status == model.NotificationStatusPending {
			existing.ScheduledAt = n.ScheduledAt
			existing.Recipient = n.Recipient
			existing.Subject = n.Subject
			existing.Content = n.Content
		}
		return nil
	}
	row := *n
	row.ID = uuid.New()
	row.Status = model.NotificationStatusPending
	s.rows[key] = &row
	return nil
}

func (s *memNotifStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []*model.Notification
	for _, row := range s.rows {
		if len(claimed) >= limit {
			break
		}
		if row.Status == model.NotificationStatusPending && !row.ScheduledAt.After(now) {
			row.Status = model.NotificationStatusDispatching
			snapshot := *row
			claimed = append(claimed, &snapshot)
		}
	}
	return claimed, nil
}

func (s *memNotifStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id && row.Status == model.NotificationStatusDispatching {
			row.Status = model.NotificationStatusSent
			row.SentAt = &at
		}
	}
	return nil
}

func (s *memNotifStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id && row.Status == model.NotificationStatusDispatching {
			row.RetryCount++
			row.ErrorMessage = &errMsg
			if row.RetryCount >= model.MaxRetries {
				row.Status = model.NotificationStatusFailed
			} else {
				row.Status = model.NotificationStatusPending
				row.ScheduledAt = retryAt
			}
			snapshot := *row
			return &snapshot, nil
		}
	}
	return nil, nil
}

func (s *memNotifStore) CancelAllForEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.rows {
		if row.EventID == eventID && !row.Terminal() && row.Status != model.NotificationStatusCancelled {
			row.Status = model.NotificationStatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *memNotifStore) CancelForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.rows {
		if row.EventID == eventID && row.OccurrenceStart.Equal(occurrenceStart) &&
			row.Status == model.NotificationStatusPending {
			row.Status = model.NotificationStatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *memNotifStore) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notification
	for _, row := range s.rows {
		if row.EventID == eventID {
			snapshot := *row
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (s *memNotifStore) CancelAllForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (int64, error) {
	return s.CancelAllForEvent(ctx, eventID)
}

func (s *memNotifStore) ShiftPendingForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, delta time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected []model.NotificationKey
	for key, row := range s.rows {
		if row.EventID == eventID && row.Status == model.NotificationStatusPending &&
			row.Type == model.NotificationTypeReminder {
			affected = append(affected, key)
		}
	}
	for _, key := range affected {
		row := s.rows[key]
		delete(s.rows, key)
		row.OccurrenceStart = row.OccurrenceStart.Add(delta)
		row.ScheduledAt = row.ScheduledAt.Add(delta)
		s.rows[row.Key()] = row
	}
	return int64(len(affected)), nil
}

func (s *memNotifStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, row := range s.rows {
		if row.Terminal() && row.UpdatedAt.Before(cutoff) {
			delete(s.rows, key)
			n++
		}
	}
	return n, nil
}

func (s *memNotifStore) byStatus(status model.NotificationStatus) []*model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notification
	for _, row := range s.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out
}

func (s *memNotifStore) byType(t model.NotificationType) []*model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notification
	for _, row := range s.rows {
		if row.Type == t {
			out = append(out, row)
		}
	}
	return out
}

type noopDispatcher struct{}

func (noopDispatcher) Send(ctx context.Context, n *model.Notification) error { return nil }

type fixture struct {
	svc           *Service
	events        *memEventStore
	attendees     *memAttendeeStore
	notifications *memNotifStore
	clk           *clock.Frozen
	now           time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFrozen(now)
	events := newMemEventStore()
	attendees := newMemAttendeeStore()
	notifications := newMemNotifStore()

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel})
	sched := scheduler.NewService(notifications, events, attendees, noopDispatcher{}, clk, log, nil, scheduler.Config{
		RetryDelay: time.Minute,
	})
	detector := conflict.NewDetector(events)
	svc := NewService(events, attendees, notifications, detector, sched, clk, log)

	return &fixture{
		svc:           svc,
		events:        events,
		attendees:     attendees,
		notifications: notifications,
		clk:           clk,
		now:           now,
	}
}

func createReq(owner uuid.UUID, start time.Time, duration time.Duration) *model.CreateEventRequest {
	end := start.Add(duration)
	return &model.CreateEventRequest{
		OwnerKind: "user",
		OwnerID:   owner,
		Title:     "standup",
		StartTime: start,
		EndTime:   &end,
		ReminderSettings: model.ReminderSettings{
			{Channel: model.ChannelEmail, MinutesBefore: 30},
		},
	}
}

func TestCreateEventSchedulesOrganizerReminder(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, conflicts, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, model.EventStatusScheduled, created.Status)

	attendees, err := f.attendees.ListForEvent(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, model.AttendeeRoleOrganizer, attendees[0].Role)
	assert.Equal(t, owner, attendees[0].UserID)

	pending := f.notifications.byStatus(model.NotificationStatusPending)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].ScheduledAt.Equal(created.StartTime.Add(-30*time.Minute)))
}

func TestCreateEventConflictBlocksUnlessForced(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	_, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	// Overlapping slot for the same owner.
	req := createReq(owner, f.now.Add(2*time.Hour+30*time.Minute), time.Hour)
	_, conflicts, err := f.svc.CreateEvent(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	require.Len(t, conflicts, 1)

	req.Force = true
	created, conflicts, err := f.svc.CreateEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1, "forced save still reports the conflicts")
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestCreateEventBackToBackDoesNotConflict(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	_, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	_, conflicts, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(3*time.Hour), time.Hour))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCancelEventCancelsRemindersAndNotifies(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)
	require.Len(t, f.notifications.byStatus(model.NotificationStatusPending), 1)

	require.NoError(t, f.svc.CancelEvent(context.Background(), created.ID))

	got, err := f.svc.GetEvent(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusCancelled, got.Status)

	reminders := f.notifications.byType(model.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, model.NotificationStatusCancelled, reminders[0].Status)

	notices := f.notifications.byType(model.NotificationTypeCancellation)
	require.Len(t, notices, 1)
	assert.Equal(t, model.NotificationStatusPending, notices[0].Status)
	assert.True(t, notices[0].ScheduledAt.Equal(f.now))

	// Second cancel is rejected.
	err = f.svc.CancelEvent(context.Background(), created.ID)
	require.Error(t, err)
}

func TestUpdateEventStartShiftMovesPendingReminders(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	newStart := created.StartTime.Add(45 * time.Minute)
	newEnd := newStart.Add(time.Hour)
	updated, conflicts, err := f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{
		StartTime: &newStart,
		EndTime:   &newEnd,
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.True(t, updated.StartTime.Equal(newStart))

	reminders := f.notifications.byType(model.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, model.NotificationStatusPending, reminders[0].Status)
	assert.True(t, reminders[0].ScheduledAt.Equal(newStart.Add(-30*time.Minute)))
	assert.True(t, reminders[0].OccurrenceStart.Equal(newStart))

	notices := f.notifications.byType(model.NotificationTypeUpdate)
	require.Len(t, notices, 1)
	assert.True(t, notices[0].ScheduledAt.Equal(f.now))

	// A second shift moves the reminder again but leaves the earlier
	// still-pending notice immediate.
	laterStart := newStart.Add(30 * time.Minute)
	laterEnd := laterStart.Add(time.Hour)
	_, _, err = f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{
		StartTime: &laterStart,
		EndTime:   &laterEnd,
	})
	require.NoError(t, err)

	reminders = f.notifications.byType(model.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	assert.True(t, reminders[0].OccurrenceStart.Equal(laterStart))

	for _, notice := range f.notifications.byType(model.NotificationTypeUpdate) {
		assert.True(t, notice.ScheduledAt.Equal(f.now))
	}
}

func TestUpdateEventToCancelledTakesCancelPath(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	cancelled := model.EventStatusCancelled
	updated, _, err := f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{
		Status: &cancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusCancelled, updated.Status)

	reminders := f.notifications.byType(model.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, model.NotificationStatusCancelled, reminders[0].Status)
}

func TestUpdateEventCancelKeepsRidingFieldChanges(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	cancelled := model.EventStatusCancelled
	title := "moved offsite, then dropped"
	updated, conflicts, err := f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{
		Title:  &title,
		Status: &cancelled,
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, model.EventStatusCancelled, updated.Status)
	assert.Equal(t, title, updated.Title)

	got, err := f.svc.GetEvent(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title, "edits riding the cancel are persisted")
	assert.Equal(t, model.EventStatusCancelled, got.Status)

	reminders := f.notifications.byType(model.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, model.NotificationStatusCancelled, reminders[0].Status)
}

func TestUpdateEventRejectsBackwardTransition(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	completed := model.EventStatusCompleted
	_, _, err = f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{Status: &completed})
	require.NoError(t, err)

	cancelled := model.EventStatusCancelled
	_, _, err = f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{Status: &cancelled})
	require.Error(t, err)

	// Reopen back to scheduled is the one allowed reversal.
	scheduled := model.EventStatusScheduled
	_, _, err = f.svc.UpdateEvent(context.Background(), created.ID, &model.UpdateEventRequest{Status: &scheduled})
	require.NoError(t, err)
}

func TestDeleteEventCancelsNotifications(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteEvent(context.Background(), created.ID))

	_, err = f.svc.GetEvent(context.Background(), created.ID)
	require.Error(t, err)
	assert.Len(t, f.notifications.byStatus(model.NotificationStatusCancelled), 1)
}

func TestBulkUpdateCancelPropagatesToNotifications(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	first, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)
	second, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(4*time.Hour), time.Hour))
	require.NoError(t, err)

	updated, err := f.svc.BulkUpdateStatus(context.Background(), &model.BulkUpdateRequest{
		EventIDs: []uuid.UUID{first.ID, second.ID},
		Status:   model.EventStatusCancelled,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)
	assert.Len(t, f.notifications.byStatus(model.NotificationStatusCancelled), 2)
}

func TestDetachOccurrenceCreatesEditableException(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	req := createReq(owner, f.now.Add(24*time.Hour), time.Hour)
	req.RecurrenceType = model.RecurrenceWeekly
	req.RecurrenceInterval = 1
	series, _, err := f.svc.CreateEvent(context.Background(), req)
	require.NoError(t, err)

	slot := series.StartTime.Add(7 * 24 * time.Hour)
	exception, err := f.svc.DetachOccurrence(context.Background(), series.ID, slot)
	require.NoError(t, err)

	assert.True(t, exception.IsException)
	require.NotNil(t, exception.SeriesID)
	assert.Equal(t, series.ID, *exception.SeriesID)
	require.NotNil(t, exception.ExceptionDate)
	assert.True(t, exception.ExceptionDate.Equal(slot))
	assert.Equal(t, model.RecurrenceNone, exception.RecurrenceType)
	require.NotNil(t, exception.EndTime)
	assert.Equal(t, time.Hour, exception.EndTime.Sub(exception.StartTime))

	// The series' attendee list carries over.
	seriesAtt, err := f.attendees.ListForEvent(context.Background(), series.ID)
	require.NoError(t, err)
	excAtt, err := f.attendees.ListForEvent(context.Background(), exception.ID)
	require.NoError(t, err)
	assert.Len(t, excAtt, len(seriesAtt))

	// The template's reminder for the detached slot is cancelled; the
	// exception carries its own.
	for _, n := range f.notifications.byType(model.NotificationTypeReminder) {
		if n.EventID == series.ID && n.OccurrenceStart.Equal(slot) {
			assert.Equal(t, model.NotificationStatusCancelled, n.Status)
		}
		if n.EventID == exception.ID {
			assert.Equal(t, model.NotificationStatusPending, n.Status)
		}
	}

	// The slot no longer expands from the template.
	occurrences, err := f.svc.ListOccurrences(context.Background(), series.ID, series.StartTime, series.StartTime.Add(21*24*time.Hour))
	require.NoError(t, err)
	for _, occ := range occurrences {
		assert.False(t, occ.StartTime.Equal(slot), "detached slot must not expand")
	}
}

func TestDetachOccurrenceRejectsForeignSlot(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	req := createReq(owner, f.now.Add(24*time.Hour), time.Hour)
	req.RecurrenceType = model.RecurrenceDaily
	req.RecurrenceInterval = 1
	series, _, err := f.svc.CreateEvent(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.DetachOccurrence(context.Background(), series.ID, series.StartTime.Add(90*time.Minute))
	require.Error(t, err)
}

func TestAddAttendeeSchedulesTheirReminder(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)
	require.Len(t, f.notifications.byStatus(model.NotificationStatusPending), 1)

	invited, err := f.svc.AddAttendee(context.Background(), created.ID, uuid.New(), "guest@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, model.AttendeeRoleAttendee, invited.Role)
	assert.Equal(t, model.AttendeeStatusPending, invited.Status)

	assert.Len(t, f.notifications.byStatus(model.NotificationStatusPending), 2)
}

func TestCheckConflictsReadOnly(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	created, _, err := f.svc.CreateEvent(context.Background(), createReq(owner, f.now.Add(2*time.Hour), time.Hour))
	require.NoError(t, err)

	conflicts, err := f.svc.CheckConflicts(context.Background(), &model.CheckConflictsRequest{
		OwnerKind: "user",
		OwnerID:   owner,
		StartTime: created.StartTime.Add(30 * time.Minute),
		EndTime:   created.StartTime.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, created.ID, conflicts[0].Event.ID)

	// Probing never writes anything.
	events, err := f.events.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
