package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
	"github.com/arpatel/calendar-api/internal/service/conflict"
	"github.com/arpatel/calendar-api/internal/service/recurrence"
	"github.com/arpatel/calendar-api/internal/service/scheduler"
	"github.com/arpatel/calendar-api/pkg/clock"
	apperrors "github.com/arpatel/calendar-api/pkg/errors"
	"github.com/arpatel/calendar-api/pkg/logger"
)

// Service orchestrates event writes: validation, the conflict gate,
// persisting, and keeping notification state consistent with the event.
// Writes that touch notification rows run inside one transaction per
// event, so readers never observe a cancelled event with live reminders.
type Service struct {
	events        repository.EventRepository
	attendees     repository.AttendeeRepository
	notifications repository.NotificationRepository
	detector      *conflict.Detector
	scheduler     *scheduler.Service
	clock         clock.Clock
	logger        *logger.Logger
}

func NewService(
	events repository.EventRepository,
	attendees repository.AttendeeRepository,
	notifications repository.NotificationRepository,
	detector *conflict.Detector,
	sched *scheduler.Service,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		events:        events,
		attendees:     attendees,
		notifications: notifications,
		detector:      detector,
		scheduler:     sched,
		clock:         clk,
		logger:        log,
	}
}

// CreateEvent validates the request, runs the conflict gate, persists the
// event with the owner as organizer and schedules its reminders.
// Conflicts are returned as data; unless Force is set they also block the
// save.
func (s *Service) CreateEvent(ctx context.Context, req *model.CreateEventRequest) (*model.Event, []conflict.Conflict, error) {
	event := s.eventFromCreate(req)
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, nil, apperrors.NewValidation("invalid event", err)
	}

	conflicts, err := s.conflictsFor(ctx, event, nil)
	if err != nil {
		return nil, nil, err
	}
	if len(conflicts) > 0 && !req.Force {
		return nil, conflicts, apperrors.Conflict("event conflicts with existing schedule", nil)
	}

	event.ID = uuid.New()
	if err := s.events.Create(ctx, event); err != nil {
		return nil, nil, fmt.Errorf("failed to create event: %w", err)
	}

	organizer := &model.Attendee{
		EventID:         event.ID,
		UserID:          event.OwnerID,
		Status:          model.AttendeeStatusAccepted,
		Role:            model.AttendeeRoleOrganizer,
		NotifyReminders: true,
		NotifyUpdates:   true,
	}
	if err := s.attendees.Upsert(ctx, organizer); err != nil {
		return nil, nil, fmt.Errorf("failed to add organizer: %w", err)
	}

	if err := s.scheduler.ScheduleFor(ctx, event); err != nil {
		s.logger.Error(err, "failed to schedule reminders",
			"event_id", event.ID.String())
	}

	return event, conflicts, nil
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("event", err)
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, filters *model.EventFilters) ([]*model.Event, error) {
	events, err := s.events.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListOccurrences expands the event inside [from, to), honoring detached
// exception slots.
func (s *Service) ListOccurrences(ctx context.Context, id uuid.UUID, from, to time.Time) ([]model.Occurrence, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	var detached []time.Time
	if event.IsRecurring {
		exceptions, err := s.events.ListExceptions(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list exceptions: %w", err)
		}
		detached = recurrence.DetachedTimes(exceptions)
	}

	return recurrence.Expand(event, from, to, detached), nil
}

// UpdateEvent applies a partial update. A start-time change shifts the
// event's undelivered notifications by the same delta inside the update
// transaction, then fans out an update notice.
func (s *Service) UpdateEvent(ctx context.Context, id uuid.UUID, req *model.UpdateEventRequest) (*model.Event, []conflict.Conflict, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	oldStart := event.StartTime
	oldStatus := event.Status
	if err := s.applyUpdate(event, req); err != nil {
		return nil, nil, err
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, nil, apperrors.NewValidation("invalid event", err)
	}

	// Cancellation through update takes the cancel path. The edited event
	// is persisted whole, so field changes riding along with the status
	// flip are not lost, and notification cleanup stays transactional.
	if event.Status == model.EventStatusCancelled && oldStatus != model.EventStatusCancelled {
		if err := s.cancel(ctx, event); err != nil {
			return nil, nil, err
		}
		return event, nil, nil
	}

	conflicts, err := s.conflictsFor(ctx, event, &event.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(conflicts) > 0 && !req.Force {
		return nil, conflicts, apperrors.Conflict("event conflicts with existing schedule", nil)
	}

	delta := event.StartTime.Sub(oldStart)

	err = s.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.events.UpdateTx(ctx, tx, event); err != nil {
			return err
		}
		if delta != 0 {
			if _, err := s.notifications.ShiftPendingForEventTx(ctx, tx, event.ID, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update event: %w", err)
	}

	if err := s.scheduler.ScheduleFor(ctx, event); err != nil {
		s.logger.Error(err, "failed to reschedule reminders",
			"event_id", event.ID.String())
	}
	if delta != 0 {
		if err := s.scheduler.NotifyChange(ctx, event, model.NotificationTypeUpdate); err != nil {
			s.logger.Error(err, "failed to notify attendees of update",
				"event_id", event.ID.String())
		}
	}

	return event, conflicts, nil
}

// CancelEvent marks the event cancelled and cancels its undelivered
// notifications in the same transaction. The cancel is fully committed
// before returning, so an already-cancelled event can never fire a
// reminder afterwards.
func (s *Service) CancelEvent(ctx context.Context, id uuid.UUID) error {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	if event.Status == model.EventStatusCancelled {
		return apperrors.BadRequest("event is already cancelled", nil)
	}
	if event.Status == model.EventStatusCompleted {
		return apperrors.BadRequest("cannot cancel a completed event", nil)
	}

	event.Status = model.EventStatusCancelled
	return s.cancel(ctx, event)
}

// cancel writes the cancelled event and cancels its undelivered
// notifications in one transaction, then fans out the cancellation notice.
func (s *Service) cancel(ctx context.Context, event *model.Event) error {
	err := s.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.events.UpdateTx(ctx, tx, event); err != nil {
			return err
		}
		if _, err := s.notifications.CancelAllForEventTx(ctx, tx, event.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel event: %w", err)
	}

	if err := s.scheduler.NotifyChange(ctx, event, model.NotificationTypeCancellation); err != nil {
		s.logger.Error(err, "failed to notify attendees of cancellation",
			"event_id", event.ID.String())
	}

	return nil
}

// DeleteEvent tombstones the event. Undelivered notifications are
// cancelled first so nothing fires for a deleted event.
func (s *Service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetEvent(ctx, id); err != nil {
		return err
	}

	if _, err := s.notifications.CancelAllForEvent(ctx, id); err != nil {
		return err
	}
	if err := s.events.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// BulkUpdateStatus moves a set of events to one status. Cancellations
// propagate to each event's notifications before the status flips.
func (s *Service) BulkUpdateStatus(ctx context.Context, req *model.BulkUpdateRequest) (int64, error) {
	if req.Status == model.EventStatusCancelled {
		for _, id := range req.EventIDs {
			if _, err := s.notifications.CancelAllForEvent(ctx, id); err != nil {
				return 0, err
			}
		}
	}

	updated, err := s.events.BulkUpdateStatus(ctx, req.EventIDs, req.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update: %w", err)
	}
	return updated, nil
}

// DetachOccurrence splits one slot of a recurring series into its own
// exception event, editable independently. The template stops generating
// that slot and its undelivered reminders are cancelled.
func (s *Service) DetachOccurrence(ctx context.Context, seriesID uuid.UUID, occurrenceStart time.Time) (*model.Event, error) {
	series, err := s.GetEvent(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if !series.IsRecurring {
		return nil, apperrors.BadRequest("event is not recurring", nil)
	}

	// The slot must actually belong to the series.
	window := recurrence.Expand(series, occurrenceStart, occurrenceStart.Add(time.Second), nil)
	found := false
	for _, occ := range window {
		if occ.StartTime.Equal(occurrenceStart) {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.BadRequest("occurrence does not belong to series", nil)
	}

	slotStart := occurrenceStart
	exception := &model.Event{
		Base:             model.Base{ID: uuid.New()},
		OwnerKind:        series.OwnerKind,
		OwnerID:          series.OwnerID,
		Title:            series.Title,
		Description:      series.Description,
		StartTime:        occurrenceStart,
		IsAllDay:         series.IsAllDay,
		Status:           model.EventStatusScheduled,
		Priority:         series.Priority,
		Category:         series.Category,
		Subcategory:      series.Subcategory,
		RecurrenceType:   model.RecurrenceNone,
		IsException:      true,
		SeriesID:         &series.ID,
		ExceptionDate:    &slotStart,
		ReminderSettings: series.ReminderSettings,
	}
	if series.EndTime != nil {
		end := occurrenceStart.Add(series.EndTime.Sub(series.StartTime))
		exception.EndTime = &end
	}
	exception.Normalize()

	if err := s.events.Create(ctx, exception); err != nil {
		return nil, fmt.Errorf("failed to create exception: %w", err)
	}

	// Reminders for the template's slot are superseded by the exception's.
	if _, err := s.notifications.CancelForOccurrence(ctx, series.ID, occurrenceStart); err != nil {
		return nil, err
	}

	// Exceptions inherit the series' attendee list.
	attendees, err := s.attendees.ListForEvent(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series attendees: %w", err)
	}
	for _, att := range attendees {
		copy := *att
		copy.ID = uuid.Nil
		copy.EventID = exception.ID
		if err := s.attendees.Upsert(ctx, &copy); err != nil {
			return nil, fmt.Errorf("failed to copy attendee: %w", err)
		}
	}

	if err := s.scheduler.ScheduleFor(ctx, exception); err != nil {
		s.logger.Error(err, "failed to schedule exception reminders",
			"event_id", exception.ID.String())
	}

	return exception, nil
}

// AddAttendee invites a user to the event and schedules their reminders.
func (s *Service) AddAttendee(ctx context.Context, eventID, userID uuid.UUID, email string, role model.AttendeeRole) (*model.Attendee, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if role == "" {
		role = model.AttendeeRoleAttendee
	}
	attendee := &model.Attendee{
		EventID:         eventID,
		UserID:          userID,
		Email:           email,
		Status:          model.AttendeeStatusPending,
		Role:            role,
		NotifyReminders: true,
		NotifyUpdates:   true,
	}
	if err := s.attendees.Upsert(ctx, attendee); err != nil {
		return nil, fmt.Errorf("failed to add attendee: %w", err)
	}

	if err := s.scheduler.ScheduleFor(ctx, event); err != nil {
		s.logger.Error(err, "failed to schedule reminders for new attendee",
			"event_id", eventID.String())
	}

	return attendee, nil
}

// CheckConflicts is the read-only conflict probe behind the API endpoint.
func (s *Service) CheckConflicts(ctx context.Context, req *model.CheckConflictsRequest) ([]conflict.Conflict, error) {
	return s.detector.FindConflicts(ctx, req.OwnerKind, req.OwnerID, req.StartTime, req.EndTime, req.ExcludeEventID)
}

func (s *Service) conflictsFor(ctx context.Context, event *model.Event, excludeID *uuid.UUID) ([]conflict.Conflict, error) {
	end := event.StartTime
	if event.EndTime != nil {
		end = *event.EndTime
	}
	if !end.After(event.StartTime) {
		// Zero-length span cannot overlap anything under half-open rules.
		return nil, nil
	}
	return s.detector.FindConflicts(ctx, event.OwnerKind, event.OwnerID, event.StartTime, end, excludeID)
}

func (s *Service) eventFromCreate(req *model.CreateEventRequest) *model.Event {
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	rtype := req.RecurrenceType
	if rtype == "" {
		rtype = model.RecurrenceNone
	}
	interval := req.RecurrenceInterval
	if rtype != model.RecurrenceNone && interval == 0 {
		interval = 1
	}
	return &model.Event{
		OwnerKind:          req.OwnerKind,
		OwnerID:            req.OwnerID,
		Title:              req.Title,
		Description:        req.Description,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		IsAllDay:           req.IsAllDay,
		Status:             model.EventStatusScheduled,
		Priority:           priority,
		Category:           req.Category,
		Subcategory:        req.Subcategory,
		RecurrenceType:     rtype,
		RecurrenceInterval: interval,
		RecurrenceEndDate:  req.RecurrenceEndDate,
		RecurrenceCount:    req.RecurrenceCount,
		ReminderSettings:   req.ReminderSettings,
	}
}

func (s *Service) applyUpdate(event *model.Event, req *model.UpdateEventRequest) error {
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = req.EndTime
	}
	if req.IsAllDay != nil {
		event.IsAllDay = *req.IsAllDay
	}
	if req.Status != nil {
		if err := validTransition(event.Status, *req.Status); err != nil {
			return apperrors.BadRequest(err.Error(), nil)
		}
		event.Status = *req.Status
	}
	if req.Priority != nil {
		event.Priority = *req.Priority
	}
	if req.Category != nil {
		event.Category = *req.Category
	}
	if req.Subcategory != nil {
		event.Subcategory = *req.Subcategory
	}
	if req.RecurrenceType != nil {
		event.RecurrenceType = *req.RecurrenceType
	}
	if req.RecurrenceInterval != nil {
		event.RecurrenceInterval = *req.RecurrenceInterval
	}
	if req.RecurrenceEndDate != nil {
		event.RecurrenceEndDate = req.RecurrenceEndDate
	}
	if req.RecurrenceCount != nil {
		event.RecurrenceCount = req.RecurrenceCount
	}
	if req.ReminderSettings != nil {
		event.ReminderSettings = req.ReminderSettings
	}
	return nil
}

// validTransition enforces forward-only status movement, with an explicit
// reopen back to scheduled as the only reversal.
func validTransition(from, to model.EventStatus) error {
	if from == to {
		return nil
	}
	switch {
	case from == model.EventStatusScheduled:
		return nil
	case to == model.EventStatusScheduled:
		// Explicit reopen.
		return nil
	default:
		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
}
