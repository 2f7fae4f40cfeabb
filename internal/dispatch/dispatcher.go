package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arpatel/calendar-api/internal/email"
	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/pkg/messaging"
)

// Dispatcher delivers one notification over a concrete transport. A
// returned error means the attempt failed and the scheduler owns the retry
// decision; implementations never block past the caller's context.
type Dispatcher interface {
	Send(ctx context.Context, n *model.Notification) error
}

const defaultSendTimeout = 10 * time.Second

// Registry routes notifications to per-channel dispatchers and enforces a
// send timeout so a slow transport is a failed attempt, not a hang.
type Registry struct {
	byChannel map[model.Channel]Dispatcher
	timeout   time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Registry{
		byChannel: make(map[model.Channel]Dispatcher),
		timeout:   timeout,
	}
}

func (r *Registry) Register(channel model.Channel, d Dispatcher) {
	r.byChannel[channel] = d
}

func (r *Registry) Send(ctx context.Context, n *model.Notification) error {
	d, ok := r.byChannel[n.Channel]
	if !ok {
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return d.Send(ctx, n)
}

type emailDispatcher struct {
	svc email.Service
}

func NewEmailDispatcher(svc email.Service) Dispatcher {
	return &emailDispatcher{svc: svc}
}

func (d *emailDispatcher) Send(ctx context.Context, n *model.Notification) error {
	return d.svc.SendCustom(ctx, n.Recipient, n.Subject, n.Content)
}

type inAppDispatcher struct {
	broker  messaging.Broker
	channel string
}

func NewInAppDispatcher(broker messaging.Broker) Dispatcher {
	return &inAppDispatcher{broker: broker, channel: "notifications"}
}

type inAppEvent struct {
	ID             uuid.UUID `json:"id"`
	NotificationID uuid.UUID `json:"notification_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	Type           string    `json:"type"`
	Subject        string    `json:"subject"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (d *inAppDispatcher) Send(ctx context.Context, n *model.Notification) error {
	return d.broker.Publish(ctx, d.channel, &inAppEvent{
		ID:             uuid.New(),
		NotificationID: n.ID,
		EventID:        n.EventID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Subject:        n.Subject,
		Content:        n.Content,
		CreatedAt:      time.Now(),
	})
}

type smsDispatcher struct{}

func NewSMSDispatcher() Dispatcher {
	return &smsDispatcher{}
}

func (d *smsDispatcher) Send(_ context.Context, _ *model.Notification) error {
	// Implement SMS sending logic
	return fmt.Errorf("SMS sending not implemented")
}

type pushDispatcher struct{}

func NewPushDispatcher() Dispatcher {
	return &pushDispatcher{}
}

func (d *pushDispatcher) Send(_ context.Context, _ *model.Notification) error {
	// Implement push notification logic
	return fmt.Errorf("push notifications not implemented")
}
