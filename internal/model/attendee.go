package model

import (
	"time"

	"github.com/google/uuid"
)

type AttendeeStatus string

const (
	AttendeeStatusPending   AttendeeStatus = "pending"
	AttendeeStatusAccepted  AttendeeStatus = "accepted"
	AttendeeStatusDeclined  AttendeeStatus = "declined"
	AttendeeStatusTentative AttendeeStatus = "tentative"
)

type AttendeeRole string

const (
	AttendeeRoleOrganizer AttendeeRole = "organizer"
	AttendeeRoleAttendee  AttendeeRole = "attendee"
	AttendeeRoleOptional  AttendeeRole = "optional"
)

// Attendee joins an event to a user. Unique per (event, user).
type Attendee struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	EventID         uuid.UUID      `db:"event_id" json:"event_id"`
	UserID          uuid.UUID      `db:"user_id" json:"user_id"`
	Email           string         `db:"email" json:"email,omitempty"`
	Status          AttendeeStatus `db:"status" json:"status"`
	Role            AttendeeRole   `db:"role" json:"role"`
	RespondedAt     *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	NotifyReminders bool           `db:"notify_reminders" json:"notify_reminders"`
	NotifyUpdates   bool           `db:"notify_updates" json:"notify_updates"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
