package workers

import (
	"context"
	"ephemeral/domain/event"
	"log/slog"
)

// TelemetryWorker drains the technical-event channel and dispatches each
// event to the registered handlers. Producers emit non-blocking, so a slow
// handler costs telemetry, never chat latency.
type TelemetryWorker struct {
	log           *slog.Logger
	telemetryChan <-chan event.Technical
	handlers      []event.Handler
}

func NewTelemetryWorker(log *slog.Logger,
	telemetryChan <-chan event.Technical,
	handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:           log,
		telemetryChan: telemetryChan,
		handlers:      handlers,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry dispatch")
			return nil
		case evt := <-w.telemetryChan:
			w.handle(evt)
		}
	}
}

// handle One pass through every handler, each reacts to its own event types
func (w TelemetryWorker) handle(evt event.Technical) {
	for _, h := range w.handlers {
		h.Handle(evt)
	}
}
