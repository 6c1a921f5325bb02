package event

import (
	"ephemeral/errors"
	"fmt"
	"log/slog"
	"sync"
)

// SessionHandler handles session lifecycle events.
// It is triggered when a connection opens or completes teardown.
// Keeps a live gauge of open sessions next to the cumulative counters.
type SessionHandler struct {
	log     *slog.Logger
	mu      sync.Mutex
	counter *Counter
	open    int64
}

func NewSessionHandler(log *slog.Logger, counter *Counter) *SessionHandler {
	return &SessionHandler{log: log, counter: counter}
}

func (h *SessionHandler) Handle(event Technical) {
	switch event.Type {
	case SessionOpenedType:
		payload, ok := event.Payload.(SessionOpened)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.open++
		h.counter.Increment(SessionOpenedType)
		h.log.Debug(fmt.Sprintf("Session %s opened, now open: %d", payload.SessionID, h.open))
	case SessionClosedType:
		payload, ok := event.Payload.(SessionClosed)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.open--
		h.counter.Increment(SessionClosedType)
		h.log.Debug(fmt.Sprintf("Session %s closed (named=%t), now open: %d", payload.SessionID, payload.Named, h.open))
	}
}

// Open returns the current number of sessions still open.
func (h *SessionHandler) Open() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}
