package events

import (
	"context"
	"sync"

	"github.com/modvault/monetization-agent/internal/ports"
)

// MemoryPublisher records events for assertions in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []ports.DomainEvent
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Events() []ports.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ports.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

var _ ports.DomainPublisher = (*MemoryPublisher)(nil)
