package event

import (
	"ephemeral/errors"
	"fmt"
	"log/slog"
	"sync"
)

// BusOverrunHandler handles events reporting dropped broadcasts.
// It is triggered when a subscriber falls behind and loses queued events.
// Useful for spotting chronically slow clients without touching the hot path.
type BusOverrunHandler struct {
	log     *slog.Logger
	mu      sync.Mutex
	counter *Counter
	dropped uint64
}

func NewBusOverrunHandler(log *slog.Logger, counter *Counter) *BusOverrunHandler {
	return &BusOverrunHandler{log: log, counter: counter}
}

func (h *BusOverrunHandler) Handle(event Technical) {
	switch event.Type {
	case BusOverrunType:
		payload, ok := event.Payload.(BusOverrun)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.counter.Increment(BusOverrunType)
		h.dropped += payload.Dropped
		h.log.Debug(fmt.Sprintf("Session %s lost %d events, total lost: %d", payload.SessionID, payload.Dropped, h.dropped))
	}
}

// Dropped returns the cumulative number of events lost across all subscribers.
func (h *BusOverrunHandler) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
