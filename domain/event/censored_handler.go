package event

import (
	"ephemeral/errors"
	"log/slog"
	"sync"
)

// CensoredHandler handles censorship hits from the moderation pass.
// It is triggered each time a banned term is masked in an outgoing message.
type CensoredHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter *Counter
	hit     map[string]uint64
}

func NewCensoredHandler(log *slog.Logger, counter *Counter) *CensoredHandler {
	return &CensoredHandler{
		log:     log,
		counter: counter,
		hit:     make(map[string]uint64),
	}
}

func (h *CensoredHandler) Handle(event Technical) {
	switch event.Type {
	case CensorshipHitType:
		payload, ok := event.Payload.(CensorshipHit)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.counter.Increment(CensorshipHitType)
		h.hit[payload.Term]++
	}
}

// Hits returns how many times the given term has been masked.
func (h *CensoredHandler) Hits(term string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hit[term]
}
