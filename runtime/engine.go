// Package runtime owns the process-wide singletons of the relay: the session
// registry, the broadcast bus and the engine wiring them to the transport.
// It orchestrates the system without containing protocol or rendering rules.
package runtime

import (
	"context"
	"embed"
	"ephemeral/contract"
	"ephemeral/domain/event"
	"ephemeral/infrastructure/httpserver"
	"ephemeral/internal"
	"ephemeral/moderation"
	"ephemeral/render"
	"ephemeral/runtime/workers"
	"ephemeral/services"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gorilla/websocket"
)

//go:embed censored/*
var censoredFolder embed.FS

// Engine constructs and owns every shared component exactly once: the
// Registry and Bus are built here and passed by reference into each
// connection's worker, never reached through package globals.
type Engine struct {
	log           *slog.Logger
	cfg           internal.Config
	registry      *Registry
	bus           *Bus
	telemetryChan chan event.Technical
	chat          *services.ChatService
	renderer      contract.Renderer
	supervisor    *workers.Supervisor
	server        *httpserver.Server

	cancelSessions context.CancelFunc
}

func NewEngine(log *slog.Logger, cfg internal.Config) (*Engine, error) {
	maskRune, err := cfg.MaskRune()
	if err != nil {
		return nil, err
	}
	// BANNED_TERMS overrides the embedded default dictionaries.
	bannedTerms := cfg.BannedTerms
	if len(bannedTerms) == 0 {
		data, err := NewCensoredLoader(censoredFolder).LoadAll("censored")
		if err != nil {
			return nil, fmt.Errorf("loading default dictionaries: %w", err)
		}
		bannedTerms = data.Words
		log.Info(fmt.Sprintf("Loaded %d banned terms from %d dictionaries (%s)",
			len(data.Words), len(data.Languages), strings.Join(data.Languages, ",")))
	}

	moderator, err := moderation.NewModerator(bannedTerms, maskRune, cfg.AllowedLangs)
	if err != nil {
		return nil, fmt.Errorf("building moderator: %w", err)
	}

	e := &Engine{
		log:           log,
		cfg:           cfg,
		registry:      NewRegistry(),
		bus:           NewBus(log, cfg.BusCapacity),
		telemetryChan: make(chan event.Technical, cfg.BusCapacity),
		renderer:      render.NewJSONRenderer(),
	}
	e.chat = services.NewChatService(log, e.bus, moderator, e.telemetryChan, cfg.MaxNameLength)
	e.supervisor = workers.NewSupervisor(log, e.telemetryChan, cfg.RestartInterval)
	e.server = httpserver.New(log, httpserver.Options{
		Addr:             fmt.Sprintf(":%d", cfg.Port),
		HandshakeTimeout: cfg.HandshakeTimeout,
		AllowedOrigins:   cfg.AllowedOrigins,
	}, e.runSession, e.registry.SnapshotNamed)

	return e, nil
}

// Start launches the process workers and serves HTTP until Stop or a fatal
// listener error. Sessions get a context detached from ctx's cancellation so
// the shutdown notice can reach them before Stop cuts them off.
func (e *Engine) Start(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancelSessions = cancel

	e.supervisor.Add(e.prepareWorkers()...)
	go e.supervisor.Run(ctx)

	e.log.Info("engine started",
		"port", e.cfg.Port,
		"bus_capacity", e.cfg.BusCapacity)
	return e.server.ListenAndServe(sessionCtx)
}

// Stop broadcasts the shutdown notice, drains the HTTP server within the
// context budget, then tears down sessions, workers and the bus.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("engine stopping")
	e.bus.Publish(event.NewAlert("server is shutting down"))

	err := e.server.Shutdown(ctx)

	if e.cancelSessions != nil {
		e.cancelSessions()
	}
	e.supervisor.Stop()
	e.bus.Close()
	return err
}

// Stats exposes bus activity for probes and tooling.
func (e *Engine) Stats() contract.BusStats {
	return e.bus.Stats()
}

// prepareWorkers builds the supervised process workers: telemetry dispatch,
// the heartbeat log line and the channel saturation sampler.
func (e *Engine) prepareWorkers() []contract.Worker {
	counter := event.NewCounter()
	handlers := []event.Handler{
		event.NewSessionHandler(e.log, counter),
		event.NewMessagePublishedHandler(e.log, counter),
		event.NewCensoredHandler(e.log, counter),
		event.NewBusOverrunHandler(e.log, counter),
		event.NewWorkerRestartedAfterPanicHandler(e.log, counter),
		event.NewChannelCapacityHandler(e.log, e.cfg.LowCapacityThreshold),
	}

	return []contract.Worker{
		workers.NewTelemetryWorker(e.log, e.telemetryChan, handlers),
		workers.NewHeartbeatWorker(e.log, e.cfg.HeartbeatInterval, e.registry, e.bus.Stats),
		workers.NewChannelCapacityWorker(e.log,
			[]workers.NamedChannel{{Name: "telemetry", Channel: e.telemetryChan}},
			e.telemetryChan, e.cfg.MetricInterval),
	}
}

// runSession drives one upgraded connection to completion. Connections are
// deliberately not supervised: a dead connection stays dead and the client
// reconnects.
func (e *Engine) runSession(ctx context.Context, conn *websocket.Conn) {
	worker := workers.NewSessionWorker(e.log, conn, e.registry, e.bus,
		func() contract.EventSource { return e.bus.Subscribe() },
		e.chat, e.renderer, e.telemetryChan,
		workers.SessionConfig{
			OutboundBuffer: e.cfg.OutboundBuffer,
			ReadLimit:      e.cfg.ReadLimitBytes,
			PongWait:       e.cfg.PongWait,
			PingInterval:   e.cfg.PingInterval,
			WriteWait:      e.cfg.WriteWait,
			GraceTimeout:   e.cfg.WriteWait,
			SlotBase:       render.SlotBase,
		})

	if err := worker.Run(ctx); err != nil {
		e.log.Warn("session ended with error", "error", err)
	}
}
