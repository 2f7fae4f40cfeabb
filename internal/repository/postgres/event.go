package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository"
)

const eventColumns = `
	id, owner_kind, owner_id, title, description,
	start_time, end_time, is_all_day, status, priority,
	category, subcategory,
	recurrence_type, recurrence_interval, recurrence_end_date, recurrence_count,
	is_recurring, is_exception, series_id, exception_date,
	duration_hours, reminder_settings,
	created_at, updated_at, deleted_at
`

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(base BaseRepository) repository.EventRepository {
	return &eventRepository{base}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22, $23, $24, NULL)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.OwnerKind,
		event.OwnerID,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		event.IsAllDay,
		event.Status,
		event.Priority,
		event.Category,
		event.Subcategory,
		event.RecurrenceType,
		event.RecurrenceInterval,
		event.RecurrenceEndDate,
		event.RecurrenceCount,
		event.IsRecurring,
		event.IsException,
		event.SeriesID,
		event.ExceptionDate,
		event.DurationHours,
		event.ReminderSettings,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
	`
	var event model.Event
	err := r.db.GetContext(ctx, &event, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

func (r *eventRepository) Update(ctx context.Context, event *model.Event) error {
	return r.update(ctx, r.db, event)
}

func (r *eventRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, event *model.Event) error {
	return r.update(ctx, tx, event)
}

func (r *eventRepository) update(ctx context.Context, ext sqlx.ExtContext, event *model.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2,
			start_time = $3, end_time = $4, is_all_day = $5,
			status = $6, priority = $7, category = $8, subcategory = $9,
			recurrence_type = $10, recurrence_interval = $11,
			recurrence_end_date = $12, recurrence_count = $13,
			is_recurring = $14, duration_hours = $15,
			reminder_settings = $16, updated_at = $17
		WHERE id = $18 AND deleted_at IS NULL
	`
	event.UpdatedAt = time.Now()

	result, err := ext.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		event.IsAllDay,
		event.Status,
		event.Priority,
		event.Category,
		event.Subcategory,
		event.RecurrenceType,
		event.RecurrenceInterval,
		event.RecurrenceEndDate,
		event.RecurrenceCount,
		event.IsRecurring,
		event.DurationHours,
		event.ReminderSettings,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("event not found")
	}

	return nil
}

func (r *eventRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE events
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("event not found")
	}

	return nil
}

func (r *eventRepository) List(ctx context.Context, filters *model.EventFilters) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE owner_kind = $1 AND owner_id = $2 AND deleted_at IS NULL
	`
	args := []interface{}{filters.OwnerKind, filters.OwnerID}
	argCount := 3

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if filters.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argCount)
		args = append(args, filters.Category)
		argCount++
	}

	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}

	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND start_time < $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY start_time ASC"

	var events []*model.Event
	err := r.db.SelectContext(ctx, &events, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListByOwnerInWindow returns every non-deleted event of the owner that
// could produce an occurrence inside [start, end): single events whose
// span touches the window plus every recurring template that starts
// before the window ends.
func (r *eventRepository) ListByOwnerInWindow(ctx context.Context, ownerKind string, ownerID uuid.UUID, start, end time.Time) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE owner_kind = $1 AND owner_id = $2
		AND deleted_at IS NULL
		AND (
			(is_recurring AND start_time < $4
				AND (recurrence_end_date IS NULL OR recurrence_end_date >= $3))
			OR (NOT is_recurring
				AND start_time < $4
				AND COALESCE(end_time, start_time) >= $3)
		)
		ORDER BY start_time ASC
	`
	var events []*model.Event
	err := r.db.SelectContext(ctx, &events, query, ownerKind, ownerID, start, end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events in window: %w", err)
	}
	return events, nil
}

func (r *eventRepository) ListExceptions(ctx context.Context, seriesID uuid.UUID) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE series_id = $1 AND is_exception AND deleted_at IS NULL
		ORDER BY exception_date ASC
	`
	var events []*model.Event
	err := r.db.SelectContext(ctx, &events, query, seriesID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	return events, nil
}

func (r *eventRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status model.EventStatus) (int64, error) {
	query := `
		UPDATE events
		SET status = $1, updated_at = NOW()
		WHERE id = ANY($2) AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, status, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update events: %w", err)
	}
	return result.RowsAffected()
}

