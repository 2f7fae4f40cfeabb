package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arpatel/calendar-api/internal/model"
)

// EventRepository is the durable store for event templates and exception
// rows. Occurrences of recurring events are computed, not stored.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	Get(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *model.EventFilters) ([]*model.Event, error)
	ListByOwnerInWindow(ctx context.Context, ownerKind string, ownerID uuid.UUID, start, end time.Time) ([]*model.Event, error)
	ListExceptions(ctx context.Context, seriesID uuid.UUID) ([]*model.Event, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status model.EventStatus) (int64, error)

	// WithTx runs fn inside one transaction. Event writes that must stay
	// consistent with notification rows go through this.
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, event *model.Event) error
}

type AttendeeRepository interface {
	Upsert(ctx context.Context, attendee *model.Attendee) error
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Attendee, error)
	Delete(ctx context.Context, eventID, userID uuid.UUID) error
}

// NotificationRepository persists the dispatch state machine. Rows are only
// ever mutated through these methods, never by API callers.
type NotificationRepository interface {
	// UpsertPending inserts a pending notification or refreshes the
	// schedule of an existing pending row with the same
	// (event, occurrence, user, type) key. Rows already past pending are
	// left alone.
	UpsertPending(ctx context.Context, n *model.Notification) error

	// ClaimDue atomically moves up to limit due pending rows to
	// dispatching and returns them. Two overlapping callers never claim
	// the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error)

	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFailed records a failed attempt: retry_count+1, error message,
	// and either back to pending at retryAt or terminal failed once the
	// budget is exhausted. Returns the updated row.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) (*model.Notification, error)

	CancelAllForEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
	CancelForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart time.Time) (int64, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Notification, error)

	// DeleteTerminalBefore prunes sent, failed and cancelled rows whose
	// last update is older than cutoff. Live rows are never touched.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CancelAllForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (int64, error)

	// ShiftPendingForEventTx moves pending reminders by delta. Immediate
	// notices (update, cancellation) and delivered rows are left alone.
	ShiftPendingForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, delta time.Duration) (int64, error)
}
