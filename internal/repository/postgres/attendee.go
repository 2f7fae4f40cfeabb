package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
)

type attendeeRepository struct {
	BaseRepository
}

func NewAttendeeRepository(base BaseRepository) repository.AttendeeRepository {
	return &attendeeRepository{base}
}

func (r *attendeeRepository) Upsert(ctx context.Context, attendee *model.Attendee) error {
	query := `
		INSERT INTO attendees (
			id, event_id, user_id, email, status, role,
			responded_at, notify_reminders, notify_updates,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = EXCLUDED.status,
			role = EXCLUDED.role,
			responded_at = EXCLUDED.responded_at,
			notify_reminders = EXCLUDED.notify_reminders,
			notify_updates = EXCLUDED.notify_updates,
			updated_at = EXCLUDED.updated_at
	`
	if attendee.ID == uuid.Nil {
		attendee.ID = uuid.New()
	}
	if attendee.CreatedAt.IsZero() {
		attendee.CreatedAt = time.Now()
	}
	attendee.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		attendee.ID,
		attendee.EventID,
		attendee.UserID,
		attendee.Email,
		attendee.Status,
		attendee.Role,
		attendee.RespondedAt,
		attendee.NotifyReminders,
		attendee.NotifyUpdates,
		attendee.CreatedAt,
		attendee.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attendee: %w", err)
	}
	return nil
}

func (r *attendeeRepository) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]*model.Attendee, error) {
	query := `
		SELECT id, event_id, user_id, email, status, role,
			   responded_at, notify_reminders, notify_updates,
			   created_at, updated_at
		FROM attendees
		WHERE event_id = $1
		ORDER BY created_at ASC
	`
	var attendees []*model.Attendee
	err := r.db.SelectContext(ctx, &attendees, query, eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	return attendees, nil
}

func (r *attendeeRepository) Delete(ctx context.Context, eventID, userID uuid.UUID) error {
	query := `
		DELETE FROM attendees
		WHERE event_id = $1 AND user_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete attendee: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("attendee not found")
	}

	return nil
}
