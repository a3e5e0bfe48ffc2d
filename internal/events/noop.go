package events

import "context"

// NoopPublisher discards all events. Used when no broker is configured and as
// a test double.
type NoopPublisher struct {
	Published []PublishedEvent
}

// PublishedEvent records one Publish call for test assertions.
type PublishedEvent struct {
	Subject string
	Event   any
}

var _ Publisher = (*NoopPublisher)(nil)

func (p *NoopPublisher) Publish(_ context.Context, subject string, event any) error {
	p.Published = append(p.Published, PublishedEvent{Subject: subject, Event: event})
	return nil
}

func (p *NoopPublisher) Close() {}
