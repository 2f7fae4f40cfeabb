package messaging

import "context"

// Broker is the pub/sub transport behind the in-app notification channel.
// Publish marshals the message to JSON; Subscribe delivers raw payloads
// until the context is cancelled or the broker is closed.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
