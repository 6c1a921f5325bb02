package event

import (
	"ephemeral/errors"
	"log/slog"
	"sync"
)

// MessagePublishedHandler handles events when a chat message reaches the bus.
// It is triggered once per published Message, after moderation.
// Useful for updating observability metrics, logging, or telemetry.
type MessagePublishedHandler struct {
	log     *slog.Logger
	mu      sync.Mutex
	counter *Counter
}

func NewMessagePublishedHandler(log *slog.Logger, counter *Counter) *MessagePublishedHandler {
	return &MessagePublishedHandler{log: log, counter: counter}
}

func (p *MessagePublishedHandler) Handle(event Technical) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case MessagePublishedType:
		if _, ok := event.Payload.(MessagePublished); !ok {
			p.log.Error(errors.ErrInvalidPayload.Error())
		}
		p.counter.Increment(MessagePublishedType)
	}
}
