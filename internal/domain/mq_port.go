package domain

import "context"

type Message struct {
	Key   []byte
	Value []byte
}

type PublisherPort interface {
	Publish(ctx context.Context, topic string, msgs ...Message) error
}

// MessageHandler processes one consumed message. Returning an error asks
// the subscriber to redeliver the same message later.
type MessageHandler func(ctx context.Context, msg Message) error

type SubscriberPort interface {
	// Subscribe blocks, feeding every message of topic to handle, until ctx
	// is done. A message is acknowledged only after handle returns nil.
	Subscribe(ctx context.Context, topic, groupID string, handle MessageHandler) error
}
