package ports

import (
	"context"
	"time"
)

type DomainEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	PartitionKey string    `json:"partition_key"`
	OccurredAt   time.Time `json:"occurred_at"`
	Payload      []byte    `json:"payload"`
}

// DomainPublisher delivery is best-effort: the service logs publish
// failures and never propagates them to the caller.
type DomainPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}
