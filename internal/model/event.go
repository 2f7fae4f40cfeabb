package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

// RecurrenceRule describes how an event repeats. Interval is the step in
// units of Type, e.g. {weekly, 2} repeats every second week.
type RecurrenceRule struct {
	Type     RecurrenceType `json:"type"`
	Interval int            `json:"interval"`
}

// Validate rejects rules the expander would have to guess about. A missing
// type is normalized to none rather than defaulting to any repeating rule.
func (r RecurrenceRule) Validate() error {
	switch r.Type {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		return fmt.Errorf("unknown recurrence type: %q", r.Type)
	}
	if r.Type != RecurrenceNone && r.Interval < 1 {
		return fmt.Errorf("recurrence interval must be >= 1, got %d", r.Interval)
	}
	return nil
}

// OwnerRef is a tagged reference to whatever entity owns the calendar
// (user, team, resource). The owning entity itself lives outside this
// service.
type OwnerRef struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

type ReminderSetting struct {
	Channel       Channel `json:"channel"`
	MinutesBefore int     `json:"minutes_before"`
}

// ReminderSettings is stored as a JSONB column.
type ReminderSettings []ReminderSetting

func (s ReminderSettings) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *ReminderSettings) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for ReminderSettings: %T", src)
	}
	return json.Unmarshal(b, s)
}

type Event struct {
	Base
	OwnerKind          string           `db:"owner_kind" json:"owner_kind"`
	OwnerID            uuid.UUID        `db:"owner_id" json:"owner_id"`
	Title              string           `db:"title" json:"title"`
	Description        string           `db:"description" json:"description,omitempty"`
	StartTime          time.Time        `db:"start_time" json:"start_time"`
	EndTime            *time.Time       `db:"end_time" json:"end_time,omitempty"`
	IsAllDay           bool             `db:"is_all_day" json:"is_all_day"`
	Status             EventStatus      `db:"status" json:"status"`
	Priority           Priority         `db:"priority" json:"priority"`
	Category           string           `db:"category" json:"category,omitempty"`
	Subcategory        string           `db:"subcategory" json:"subcategory,omitempty"`
	RecurrenceType     RecurrenceType   `db:"recurrence_type" json:"recurrence_type"`
	RecurrenceInterval int              `db:"recurrence_interval" json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time       `db:"recurrence_end_date" json:"recurrence_end_date,omitempty"`
	RecurrenceCount    *int             `db:"recurrence_count" json:"recurrence_count,omitempty"`
	IsRecurring        bool             `db:"is_recurring" json:"is_recurring"`
	IsException        bool             `db:"is_exception" json:"is_exception"`
	SeriesID           *uuid.UUID       `db:"series_id" json:"series_id,omitempty"`
	ExceptionDate      *time.Time       `db:"exception_date" json:"exception_date,omitempty"`
	DurationHours      float64          `db:"duration_hours" json:"duration_hours"`
	ReminderSettings   ReminderSettings `db:"reminder_settings" json:"reminder_settings,omitempty"`
}

// Recurrence returns the event's rule as a value; unset or unrecognized
// types read as none so downstream code never repeats by accident.
func (e *Event) Recurrence() RecurrenceRule {
	rule := RecurrenceRule{Type: e.RecurrenceType, Interval: e.RecurrenceInterval}
	switch rule.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		rule.Type = RecurrenceNone
	}
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	return rule
}

// Normalize computes derived fields. Called on every create/update path
// instead of relying on a persistence hook.
func (e *Event) Normalize() {
	e.IsRecurring = e.Recurrence().Type != RecurrenceNone
	if e.EndTime != nil {
		e.DurationHours = e.EndTime.Sub(e.StartTime).Hours()
	} else {
		e.DurationHours = 0
	}
}

// Validate checks the write-time invariants.
func (e *Event) Validate() error {
	if e.OwnerID == uuid.Nil {
		return fmt.Errorf("owner ID is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("start time is required")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return fmt.Errorf("end time must not be before start time")
	}
	if err := (RecurrenceRule{Type: e.RecurrenceType, Interval: e.RecurrenceInterval}).Validate(); err != nil {
		return err
	}
	switch e.Status {
	case EventStatusScheduled, EventStatusCancelled, EventStatusCompleted:
	default:
		return fmt.Errorf("unknown event status: %q", e.Status)
	}
	return nil
}

// Occurrence is one concrete dated instance of a possibly recurring event.
// Occurrences are computed on demand and not persisted unless detached into
// an exception event.
type Occurrence struct {
	EventID     uuid.UUID  `json:"event_id"`
	SeriesID    *uuid.UUID `json:"series_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	IsAllDay    bool       `json:"is_all_day"`
	IsException bool       `json:"is_exception"`
}

// Span reports the occurrence interval as [start, end). All-day and
// end-less occurrences are treated as instantaneous for conflict purposes.
func (o Occurrence) Span() (time.Time, time.Time) {
	if o.EndTime != nil {
		return o.StartTime, *o.EndTime
	}
	return o.StartTime, o.StartTime
}

type CreateEventRequest struct {
	OwnerKind          string           `json:"owner_kind" binding:"required"`
	OwnerID            uuid.UUID        `json:"owner_id" binding:"required"`
	Title              string           `json:"title" binding:"required,max=255"`
	Description        string           `json:"description" binding:"max=4000"`
	StartTime          time.Time        `json:"start_time" binding:"required"`
	EndTime            *time.Time       `json:"end_time"`
	IsAllDay           bool             `json:"is_all_day"`
	Priority           Priority         `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Category           string           `json:"category"`
	Subcategory        string           `json:"subcategory"`
	RecurrenceType     RecurrenceType   `json:"recurrence_type" binding:"omitempty,oneof=none daily weekly monthly yearly"`
	RecurrenceInterval int              `json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time       `json:"recurrence_end_date"`
	RecurrenceCount    *int             `json:"recurrence_count"`
	ReminderSettings   ReminderSettings `json:"reminder_settings"`
	Force              bool             `json:"force"`
}

type UpdateEventRequest struct {
	Title              *string          `json:"title"`
	Description        *string          `json:"description"`
	StartTime          *time.Time       `json:"start_time"`
	EndTime            *time.Time       `json:"end_time"`
	IsAllDay           *bool            `json:"is_all_day"`
	Status             *EventStatus     `json:"status"`
	Priority           *Priority        `json:"priority"`
	Category           *string          `json:"category"`
	Subcategory        *string          `json:"subcategory"`
	RecurrenceType     *RecurrenceType  `json:"recurrence_type"`
	RecurrenceInterval *int             `json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time       `json:"recurrence_end_date"`
	RecurrenceCount    *int             `json:"recurrence_count"`
	ReminderSettings   ReminderSettings `json:"reminder_settings"`
	Force              bool             `json:"force"`
}

type CheckConflictsRequest struct {
	OwnerKind      string     `json:"owner_kind" binding:"required"`
	OwnerID        uuid.UUID  `json:"owner_id" binding:"required"`
	StartTime      time.Time  `json:"start_time" binding:"required"`
	EndTime        time.Time  `json:"end_time" binding:"required"`
	ExcludeEventID *uuid.UUID `json:"exclude_event_id"`
}

type BulkUpdateRequest struct {
	EventIDs []uuid.UUID `json:"event_ids" binding:"required,min=1"`
	Status   EventStatus `json:"status" binding:"required,oneof=scheduled cancelled completed"`
}

type EventFilters struct {
	OwnerKind string
	OwnerID   uuid.UUID
	Status    EventStatus
	Category  string
	StartDate time.Time
	EndDate   time.Time
}
