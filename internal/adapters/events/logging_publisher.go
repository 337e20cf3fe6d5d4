package events

import (
	"context"
	"log/slog"

	"github.com/modvault/monetization-agent/internal/ports"
)

// LoggingPublisher stands in for Kafka when no brokers are configured:
// events still surface in the structured log stream.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	p.logger.InfoContext(ctx, "domain event",
		"module", "events",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
	)
	return nil
}

var _ ports.DomainPublisher = (*LoggingPublisher)(nil)
