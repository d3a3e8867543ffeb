package messaging

import "context"

// Broker is the outbound side of the event pipeline: the outbox worker
// publishes processed events through it.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
