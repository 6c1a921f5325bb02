package workers

import (
	"context"
	stderrors "errors"
	"ephemeral/contract"
	"ephemeral/domain"
	"ephemeral/domain/event"
	"ephemeral/errors"
	"ephemeral/protocol"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// SessionConfig carries the per-connection tuning knobs.
type SessionConfig struct {
	OutboundBuffer int
	ReadLimit      int64
	PongWait       time.Duration
	PingInterval   time.Duration
	WriteWait      time.Duration
	GraceTimeout   time.Duration
	SlotBase       uint64
}

// SessionWorker owns one connection for its whole life. It registers a fresh
// session, then runs three duties concurrently until the first one finishes:
//
//   - inbound: read frames, decode, advance the state machine
//   - outbound: drain the session's delivery handle onto the socket, ping
//   - forwarder: pull bus events, gate on the named state, render, queue
//
// Whichever duty stops first drags the others down through the shared group
// context, and teardown runs exactly once: drop the subscription, remove the
// session from the registry, publish Leave if the session ever got a name.
//
// SessionWorkers are not supervised: a dead connection stays dead, the client
// reconnects.
type SessionWorker struct {
	log       *slog.Logger
	conn      contract.FrameConn
	registry  contract.Registry
	publisher contract.Publisher
	subscribe func() contract.EventSource
	handler   contract.IntentHandler
	renderer  contract.Renderer

	telemetryChan chan<- event.Technical
	cfg           SessionConfig

	session  *domain.Session
	seq      atomic.Uint64
	teardown sync.Once
}

var _ contract.Worker = (*SessionWorker)(nil)

func NewSessionWorker(log *slog.Logger, conn contract.FrameConn,
	registry contract.Registry, publisher contract.Publisher,
	subscribe func() contract.EventSource, handler contract.IntentHandler,
	renderer contract.Renderer, telemetryChan chan<- event.Technical,
	cfg SessionConfig) *SessionWorker {
	w := &SessionWorker{
		log:           log,
		conn:          conn,
		registry:      registry,
		publisher:     publisher,
		subscribe:     subscribe,
		handler:       handler,
		renderer:      renderer,
		telemetryChan: telemetryChan,
		cfg:           cfg,
	}
	w.seq.Store(cfg.SlotBase)
	return w
}

// Run blocks until the connection is fully torn down.
// A transport ending, however rudely, is a normal way for a chat to end, so
// Run only returns an error for failures that are not the socket closing.
func (w *SessionWorker) Run(ctx context.Context) error {
	w.session = domain.NewSession(w.cfg.OutboundBuffer)
	log := w.log.With("session", w.session.ID.String())

	if err := w.registry.Insert(w.session); err != nil {
		// Duplicate id means a generator defect. Fatal to this connection
		// attempt only: close the socket, leave everyone else alone.
		_ = w.conn.Close()
		return fmt.Errorf("registering session: %w", err)
	}
	subscription := w.subscribe()
	w.emit(event.NewTechnical(event.SessionOpenedType, event.SessionOpened{SessionID: w.session.ID.String()}))
	log.Info("session opened")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.inbound(groupCtx, log) })
	group.Go(func() error { return w.outbound(groupCtx) })
	group.Go(func() error { return w.forward(groupCtx, log, subscription) })
	group.Go(func() error {
		// Closer: once the group is cancelled, unblock the inbound read with
		// a best-effort close handshake bounded by the grace period.
		<-groupCtx.Done()
		deadline := time.Now().Add(w.cfg.GraceTimeout)
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = w.conn.Close()
		return nil
	})

	err := group.Wait()
	w.finish(log, subscription)

	if isExpectedEnd(err) {
		return nil
	}
	return err
}

// inbound reads and decodes frames until the transport ends, feeding each
// intent to the state machine. Decode failures stay local: the offender gets
// an Error event and the loop keeps going.
func (w *SessionWorker) inbound(ctx context.Context, log *slog.Logger) error {
	w.conn.SetReadLimit(w.cfg.ReadLimit)
	_ = w.conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	})

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("transport error", "error", err)
			}
			return fmt.Errorf("transport closed: %w", err)
		}

		intent, err := protocol.Decode(messageType, data)
		if err != nil {
			log.Debug("malformed frame", "error", err)
			w.sendLocal(ctx, log, event.NewError("malformed payload"))
			continue
		}

		if reply := w.handler.Handle(w.session, intent); reply != nil {
			w.sendLocal(ctx, log, *reply)
		}
	}
}

// outbound drains the session's delivery handle onto the socket and keeps the
// connection alive with pings. One write deadline per frame.
func (w *SessionWorker) outbound(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, open := <-w.session.Outbound():
			if !open {
				return errors.ErrEngineStopped
			}
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
		case <-ticker.C:
			if err := w.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(w.cfg.WriteWait)); err != nil {
				return fmt.Errorf("writing ping: %w", err)
			}
		}
	}
}

// forward pulls broadcast events off this session's subscription. Nothing is
// delivered while the session is still anonymous: a newcomer walks into a
// live room, not a transcript. Gap reports from the bus are logged and
// traced, never fatal.
func (w *SessionWorker) forward(ctx context.Context, log *slog.Logger, subscription contract.EventSource) error {
	for {
		ev, dropped, err := subscription.Receive(ctx)
		if err != nil {
			return fmt.Errorf("subscription ended: %w", err)
		}

		if dropped > 0 {
			log.Warn("bus overrun, events lost", "dropped", dropped)
			w.emit(event.NewTechnical(event.BusOverrunType, event.BusOverrun{
				SessionID: w.session.ID.String(),
				Dropped:   dropped,
			}))
		}

		if !w.session.Named() {
			continue
		}
		if err := w.deliver(ctx, log, ev); err != nil {
			return err
		}
	}
}

// sendLocal delivers an event to this session only, bypassing the bus.
// Used for the join ack and for decode error reports.
func (w *SessionWorker) sendLocal(ctx context.Context, log *slog.Logger, ev event.BroadcastEvent) {
	if err := w.deliver(ctx, log, ev); err != nil {
		log.Debug("local reply dropped", "error", err)
	}
}

func (w *SessionWorker) deliver(ctx context.Context, log *slog.Logger, ev event.BroadcastEvent) error {
	payload, err := w.renderer.Render(ev, w.nextSlot())
	if err != nil {
		// A renderer refusing one event is no reason to drop the connection.
		log.Error("render failed", "kind", string(ev.Kind), "error", err)
		return nil
	}
	return w.session.Deliver(ctx, payload)
}

// nextSlot hands out this recipient's display slots, starting at the slot
// base so live traffic lines up after the client's welcome lines.
func (w *SessionWorker) nextSlot() uint64 {
	return w.seq.Add(1) - 1
}

// finish runs the teardown exactly once, whichever duty triggered it.
func (w *SessionWorker) finish(log *slog.Logger, subscription contract.EventSource) {
	w.teardown.Do(func() {
		subscription.Close()
		w.registry.Remove(w.session.ID)
		w.session.CloseOutbound()
		_ = w.conn.Close()

		if name, ok := w.session.Name(); ok {
			w.publisher.Publish(event.NewLeave(name))
		}
		w.emit(event.NewTechnical(event.SessionClosedType, event.SessionClosed{
			SessionID: w.session.ID.String(),
			Named:     w.session.Named(),
		}))
		log.Info("session closed", "named", w.session.Named())
	})
}

// emit pushes a technical event without ever blocking a duty.
func (w *SessionWorker) emit(evt event.Technical) {
	select {
	case w.telemetryChan <- evt:
	default:
		w.log.Debug("telemetry event lost", "type", string(evt.Type))
	}
}

// isExpectedEnd filters the ways a healthy connection stops.
func isExpectedEnd(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return true
	}
	if stderrors.Is(err, net.ErrClosed) || stderrors.Is(err, errors.ErrSubscriptionClosed) {
		return true
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var closeErr *websocket.CloseError
	return stderrors.As(err, &closeErr)
}
