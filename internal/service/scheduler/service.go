package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arpatel/calendar-api/internal/dispatch"
	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
	"github.com/arpatel/calendar-api/internal/service/recurrence"
	"github.com/arpatel/calendar-api/pkg/clock"
	"github.com/arpatel/calendar-api/pkg/logger"
	"github.com/arpatel/calendar-api/pkg/metrics"
)

const (
	// DefaultHorizon bounds how far ahead reminders are materialized.
	DefaultHorizon = 30 * 24 * time.Hour

	defaultRetryDelay = 5 * time.Minute
	defaultBatchSize  = 100
)

type Config struct {
	Horizon    time.Duration
	RetryDelay time.Duration
	BatchSize  int
}

// Service owns the notification lifecycle:
//
//	pending -> dispatching -> sent
//	                       -> pending (retry, budget left)
//	                       -> failed  (terminal, budget exhausted)
//	pending|dispatching    -> cancelled (event cancelled)
//
// Rows are claimed with a compare-and-set, so overlapping DispatchDue runs
// each see a disjoint slice of the due set.
type Service struct {
	notifications repository.NotificationRepository
	events        repository.EventRepository
	attendees     repository.AttendeeRepository
	dispatcher    dispatch.Dispatcher
	clock         clock.Clock
	logger        *logger.Logger
	metrics       *metrics.Metrics
	cfg           Config
}

func NewService(
	notifications repository.NotificationRepository,
	events repository.EventRepository,
	attendees repository.AttendeeRepository,
	dispatcher dispatch.Dispatcher,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Service{
		notifications: notifications,
		events:        events,
		attendees:     attendees,
		dispatcher:    dispatcher,
		clock:         clk,
		logger:        log,
		metrics:       m,
		cfg:           cfg,
	}
}

// ScheduleFor materializes pending reminder notifications for every
// occurrence of the event inside the forward horizon, fanned out to
// attendees who opted into reminders. Reminders whose fire time is already
// past are not scheduled. Re-running over the same event upserts instead
// of duplicating.
func (s *Service) ScheduleFor(ctx context.Context, event *model.Event) error {
	if event.Status != model.EventStatusScheduled {
		return nil
	}
	if len(event.ReminderSettings) == 0 {
		return nil
	}

	now := s.clock.Now()

	var detached []time.Time
	if event.IsRecurring {
		exceptions, err := s.events.ListExceptions(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("failed to list exceptions: %w", err)
		}
		detached = recurrence.DetachedTimes(exceptions)
	}

	recipients, err := s.reminderRecipients(ctx, event)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	occurrences := recurrence.Expand(event, now, now.Add(s.cfg.Horizon), detached)
	for _, occ := range occurrences {
		for _, att := range recipients {
			for _, setting := range event.ReminderSettings {
				scheduledAt := occ.StartTime.Add(-time.Duration(setting.MinutesBefore) * time.Minute)
				if !scheduledAt.After(now) {
					continue
				}

				n := &model.Notification{
					EventID:         event.ID,
					UserID:          att.UserID,
					OccurrenceStart: occ.StartTime,
					Type:            model.NotificationTypeReminder,
					Channel:         setting.Channel,
					Priority:        event.Priority,
					Subject:         fmt.Sprintf("Reminder: %s", event.Title),
					Content:         reminderContent(event, occ, setting.MinutesBefore),
					Recipient:       att.Email,
					ScheduledAt:     scheduledAt,
				}
				if err := s.notifications.UpsertPending(ctx, n); err != nil {
					return fmt.Errorf("failed to schedule reminder: %w", err)
				}
			}
		}
	}
	return nil
}

// NotifyChange fans an update or cancellation out to attendees who opted
// into update notices. These fire immediately regardless of lead time.
func (s *Service) NotifyChange(ctx context.Context, event *model.Event, typ model.NotificationType) error {
	switch typ {
	case model.NotificationTypeUpdate, model.NotificationTypeCancellation,
		model.NotificationTypeInvitation, model.NotificationTypeResponse:
	default:
		return fmt.Errorf("not an immediate notification type: %s", typ)
	}

	attendees, err := s.attendees.ListForEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to list attendees: %w", err)
	}

	now := s.clock.Now()
	for _, att := range attendees {
		if !att.NotifyUpdates {
			continue
		}
		n := &model.Notification{
			EventID:         event.ID,
			UserID:          att.UserID,
			OccurrenceStart: event.StartTime,
			Type:            typ,
			Channel:         model.ChannelEmail,
			Priority:        event.Priority,
			Subject:         changeSubject(event, typ),
			Content:         changeContent(event, typ),
			Recipient:       att.Email,
			ScheduledAt:     now,
		}
		if err := s.notifications.UpsertPending(ctx, n); err != nil {
			return fmt.Errorf("failed to schedule %s notification: %w", typ, err)
		}
	}
	return nil
}

// DispatchDue claims the batch of due notifications and attempts delivery.
// Each claimed row sees exactly one attempt per invocation; failures burn
// a retry and go back to pending with backoff until the budget runs out.
// Returns the number of notifications delivered.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	now := s.clock.Now()

	batch, err := s.notifications.ClaimDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim due notifications: %w", err)
	}
	if s.metrics != nil && len(batch) > 0 {
		s.metrics.NotificationsClaimed.Add(float64(len(batch)))
	}

	sent := 0
	for _, n := range batch {
		if err := s.dispatcher.Send(ctx, n); err != nil {
			s.recordFailure(ctx, n, err)
			continue
		}

		if err := s.notifications.MarkSent(ctx, n.ID, s.clock.Now()); err != nil {
			s.logger.Error(err, "failed to mark notification sent",
				"notification_id", n.ID.String())
			continue
		}
		if s.metrics != nil {
			s.metrics.NotificationsSent.WithLabelValues(string(n.Channel)).Inc()
		}
		sent++
	}
	return sent, nil
}

func (s *Service) recordFailure(ctx context.Context, n *model.Notification, sendErr error) {
	// Linear backoff on the attempt number, like the rest of the retry
	// machinery: attempt k retries after k*RetryDelay.
	retryAt := s.clock.Now().Add(s.cfg.RetryDelay * time.Duration(n.RetryCount+1))

	updated, err := s.notifications.MarkFailed(ctx, n.ID, sendErr.Error(), retryAt)
	if err != nil {
		s.logger.Error(err, "failed to record dispatch failure",
			"notification_id", n.ID.String())
		return
	}
	if s.metrics != nil {
		s.metrics.NotificationsFailed.WithLabelValues(string(n.Channel)).Inc()
	}

	if updated.Status == model.NotificationStatusFailed && updated.RetryCount >= model.MaxRetries {
		// Terminal. This must reach an operator, not vanish.
		if s.metrics != nil {
			s.metrics.NotificationsExhausted.Inc()
		}
		s.logger.Error(sendErr, "notification exhausted retry budget",
			"notification_id", n.ID.String(),
			"event_id", n.EventID.String(),
			"user_id", n.UserID.String(),
			"channel", string(n.Channel),
			"retry_count", updated.RetryCount)
		return
	}

	s.logger.Warn("notification dispatch failed, will retry",
		"notification_id", n.ID.String(),
		"retry_count", updated.RetryCount,
		"retry_at", retryAt.Format(time.RFC3339))
}

// CancelForEvent flips all still-undelivered notifications of the event to
// cancelled. Rows are kept for the audit trail.
func (s *Service) CancelForEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	n, err := s.notifications.CancelAllForEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel notifications: %w", err)
	}
	return n, nil
}

func (s *Service) reminderRecipients(ctx context.Context, event *model.Event) ([]*model.Attendee, error) {
	attendees, err := s.attendees.ListForEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	var out []*model.Attendee
	for _, att := range attendees {
		if att.NotifyReminders && att.Status != model.AttendeeStatusDeclined {
			out = append(out, att)
		}
	}
	return out, nil
}

func reminderContent(event *model.Event, occ model.Occurrence, minutesBefore int) string {
	return fmt.Sprintf("%s starts at %s (in %d minutes)",
		event.Title, occ.StartTime.Format(time.RFC1123), minutesBefore)
}

func changeSubject(event *model.Event, typ model.NotificationType) string {
	switch typ {
	case model.NotificationTypeCancellation:
		return fmt.Sprintf("Cancelled: %s", event.Title)
	case model.NotificationTypeInvitation:
		return fmt.Sprintf("Invitation: %s", event.Title)
	default:
		return fmt.Sprintf("Updated: %s", event.Title)
	}
}

func changeContent(event *model.Event, typ model.NotificationType) string {
	switch typ {
	case model.NotificationTypeCancellation:
		return fmt.Sprintf("%s scheduled for %s has been cancelled",
			event.Title, event.StartTime.Format(time.RFC1123))
	default:
		return fmt.Sprintf("%s is now scheduled for %s",
			event.Title, event.StartTime.Format(time.RFC1123))
	}
}
