package audit

import (
	"context"

	id "voicegate/pkg/domain"
)

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
}

// Publisher hands events to the audit pipeline without blocking the caller.
type Publisher struct {
	inbox chan Event
}

// NewPublisher creates a publisher with a bounded inbox. Pair it with a
// Worker draining Inbox.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan Event, buffer)}
}

// Inbox exposes the receive side for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// Publish enqueues an event. It returns false if the inbox is full; audit
// loss is preferred over blocking a verification request.
func (p *Publisher) Publish(event Event) bool {
	select {
	case p.inbox <- event:
		return true
	default:
		return false
	}
}
