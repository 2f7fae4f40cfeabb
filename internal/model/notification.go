package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending     NotificationStatus = "pending"
	NotificationStatusDispatching NotificationStatus = "dispatching"
	NotificationStatusSent        NotificationStatus = "sent"
	NotificationStatusFailed      NotificationStatus = "failed"
	NotificationStatusCancelled   NotificationStatus = "cancelled"
)

type NotificationType string

const (
	NotificationTypeReminder     NotificationType = "reminder"
	NotificationTypeUpdate       NotificationType = "update"
	NotificationTypeCancellation NotificationType = "cancellation"
	NotificationTypeInvitation   NotificationType = "invitation"
	NotificationTypeResponse     NotificationType = "response"
	NotificationTypeOverdue      NotificationType = "overdue"
	NotificationTypeConflict     NotificationType = "conflict"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// MaxRetries is the retry budget per notification. A notification that
// fails with RetryCount at this value is terminal.
const MaxRetries = 3

type Notification struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	EventID         uuid.UUID          `db:"event_id" json:"event_id"`
	UserID          uuid.UUID          `db:"user_id" json:"user_id"`
	OccurrenceStart time.Time          `db:"occurrence_start" json:"occurrence_start"`
	Type            NotificationType   `db:"type" json:"type"`
	Channel         Channel            `db:"channel" json:"channel"`
	Priority        Priority           `db:"priority" json:"priority"`
	Subject         string             `db:"subject" json:"subject"`
	Content         string             `db:"content" json:"content"`
	Recipient       string             `db:"recipient" json:"recipient"`
	ScheduledAt     time.Time          `db:"scheduled_at" json:"scheduled_at"`
	SentAt          *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	Status          NotificationStatus `db:"status" json:"status"`
	RetryCount      int                `db:"retry_count" json:"retry_count"`
	ErrorMessage    *string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// Key identifies the logical notification independently of the row id.
// Rescheduling for the same tuple upserts instead of duplicating.
func (n *Notification) Key() NotificationKey {
	return NotificationKey{
		EventID:         n.EventID,
		OccurrenceStart: n.OccurrenceStart,
		UserID:          n.UserID,
		Type:            n.Type,
	}
}

type NotificationKey struct {
	EventID         uuid.UUID
	OccurrenceStart time.Time
	UserID          uuid.UUID
	Type            NotificationType
}

// Terminal reports whether the notification can never be dispatched again.
func (n *Notification) Terminal() bool {
	switch n.Status {
	case NotificationStatusSent, NotificationStatusCancelled:
		return true
	case NotificationStatusFailed:
		return n.RetryCount >= MaxRetries
	}
	return false
}
