package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
)

const notificationColumns = `
	id, event_id, user_id, occurrence_start, type, channel, priority,
	subject, content, recipient, scheduled_at, sent_at, status,
	retry_count, error_message, created_at, updated_at
`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

// UpsertPending is keyed by (event_id, occurrence_start, user_id, type) so
// re-running the scheduler over the same event never duplicates rows. Only
// rows that are still pending get their schedule refreshed.
func (r *notificationRepository) UpsertPending(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, $12, 0, NULL, $13, $14)
		ON CONFLICT (event_id, occurrence_start, user_id, type) DO UPDATE
		SET channel = EXCLUDED.channel,
			priority = EXCLUDED.priority,
			subject = EXCLUDED.subject,
			content = EXCLUDED.content,
			recipient = EXCLUDED.recipient,
			scheduled_at = EXCLUDED.scheduled_at,
			updated_at = EXCLUDED.updated_at
		WHERE notifications.status = 'pending'
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Status = model.NotificationStatusPending
	n.CreatedAt = time.Now()
	n.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.EventID,
		n.UserID,
		n.OccurrenceStart,
		n.Type,
		n.Channel,
		n.Priority,
		n.Subject,
		n.Content,
		n.Recipient,
		n.ScheduledAt,
		n.Status,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert notification: %w", err)
	}
	return nil
}

// ClaimDue flips due pending rows to dispatching and returns them in one
// statement. SKIP LOCKED plus the status predicate means two overlapping
// dispatch runs split the due set instead of double-sending.
func (r *notificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'dispatching', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'pending' AND scheduled_at <= $1
			ORDER BY scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		RETURNING ` + notificationColumns + `
	`
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim due notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'sent', sent_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'dispatching'
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification %s not in dispatching state", id)
	}

	return nil
}

// MarkFailed burns one retry. While budget remains the row goes back to
// pending at retryAt; at the limit it parks as terminal failed.
func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) (*model.Notification, error) {
	query := `
		UPDATE notifications
		SET retry_count = retry_count + 1,
			error_message = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN retry_count + 1 >= $3 THEN scheduled_at ELSE $4 END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'dispatching'
		RETURNING ` + notificationColumns + `
	`
	var n model.Notification
	err := r.db.GetContext(ctx, &n, query, id, errMsg, model.MaxRetries, retryAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) CancelAllForEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return r.cancelAllForEvent(ctx, r.db, eventID)
}

func (r *notificationRepository) CancelAllForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (int64, error) {
	return r.cancelAllForEvent(ctx, tx, eventID)
}

func (r *notificationRepository) cancelAllForEvent(ctx context.Context, ext sqlx.ExtContext, eventID uuid.UUID) (int64, error) {
	query := `
		UPDATE notifications
		SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND status IN ('pending', 'dispatching')
	`
	result, err := ext.ExecContext(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel notifications: %w", err)
	}
	return result.RowsAffected()
}

// CancelForOccurrence cancels undelivered notifications for one slot of a
// series, used when the slot is detached into an exception event.
func (r *notificationRepository) CancelForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart time.Time) (int64, error) {
	query := `
		UPDATE notifications
		SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND occurrence_start = $2
		AND status IN ('pending', 'dispatching')
	`
	result, err := r.db.ExecContext(ctx, query, eventID, occurrenceStart)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel occurrence notifications: %w", err)
	}
	return result.RowsAffected()
}

// ShiftPendingForEventTx moves undelivered reminders by the same delta the
// event moved. Update and cancellation notices keep their immediate
// scheduled_at, and sent and terminal rows keep their history.
func (r *notificationRepository) ShiftPendingForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, delta time.Duration) (int64, error) {
	query := `
		UPDATE notifications
		SET occurrence_start = occurrence_start + $2 * INTERVAL '1 second',
			scheduled_at = scheduled_at + $2 * INTERVAL '1 second',
			updated_at = NOW()
		WHERE event_id = $1 AND status = 'pending' AND type = 'reminder'
	`
	result, err := tx.ExecContext(ctx, query, eventID, int64(delta.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to shift notifications: %w", err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE event_id = $1
		ORDER BY scheduled_at ASC
	`
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed', 'cancelled')
		AND updated_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", err)
	}
	return result.RowsAffected()
}
