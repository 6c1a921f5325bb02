package workers_test

import (
	"context"
	"encoding/json"
	"ephemeral/contract"
	"ephemeral/domain/event"
	"ephemeral/moderation"
	"ephemeral/render"
	"ephemeral/runtime"
	"ephemeral/runtime/workers"
	"ephemeral/services"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeConn is a channel-driven stand-in for a websocket connection: tests
// feed inbound frames and read back what the outbound duty wrote.
type fakeConn struct {
	in     chan inboundFrame
	writes chan []byte
	closed chan struct{}
	once   sync.Once
}

type inboundFrame struct {
	messageType int
	data        []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan inboundFrame, 16),
		writes: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) send(text string) {
	c.in <- inboundFrame{messageType: websocket.TextMessage, data: []byte(text)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.in:
		return frame.messageType, frame.data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	case c.writes <- data:
		return nil
	}
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(int64)                        {}
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)         {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type harness struct {
	bus      *runtime.Bus
	registry *runtime.Registry
	conn     *fakeConn
	done     chan error
}

func startWorker(t *testing.T) *harness {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	bus := runtime.NewBus(log, 32)
	registry := runtime.NewRegistry()
	moderator, err := moderation.NewModerator(nil, '*', nil)
	req.NoError(err)
	telemetryChan := make(chan event.Technical, 64)
	service := services.NewChatService(log, bus, moderator, telemetryChan, 32)

	conn := newFakeConn()
	worker := workers.NewSessionWorker(log, conn, registry, bus,
		func() contract.EventSource { return bus.Subscribe() },
		service, render.NewJSONRenderer(), telemetryChan,
		workers.SessionConfig{
			OutboundBuffer: 16,
			ReadLimit:      4096,
			PongWait:       time.Minute,
			PingInterval:   50 * time.Second,
			WriteWait:      time.Second,
			GraceTimeout:   100 * time.Millisecond,
			SlotBase:       render.SlotBase,
		})

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	t.Cleanup(func() { _ = conn.Close() })
	return &harness{bus: bus, registry: registry, conn: conn, done: done}
}

func (h *harness) nextFrame(t *testing.T, timeout time.Duration) (render.Frame, bool) {
	t.Helper()
	select {
	case payload := <-h.conn.writes:
		var frame render.Frame
		require.NoError(t, json.Unmarshal(payload, &frame))
		return frame, true
	case <-time.After(timeout):
		return render.Frame{}, false
	}
}

func (h *harness) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "worker did not tear down")
	}
}

func TestSessionWorker_AnonymousSeesNothingUntilNamed(t *testing.T) {
	req := require.New(t)
	h := startWorker(t)

	// Given traffic on the bus while the session is still anonymous
	h.bus.Publish(event.NewMessage("bob", "before you arrived"))

	_, got := h.nextFrame(t, 150*time.Millisecond)
	req.False(got, "anonymous session must not receive broadcasts")

	// When the session declares its name
	h.conn.send(`{"message":"alice"}`)

	// Then it receives the local ack and its own Join, nothing older
	kinds := map[string]string{}
	for i := 0; i < 2; i++ {
		frame, got := h.nextFrame(t, time.Second)
		req.True(got)
		kinds[frame.Kind] = frame.Text
	}
	req.Equal("joined as alice", kinds["ok"])
	req.Equal("alice joined", kinds["join"])
}

func TestSessionWorker_NamedSession_ReceivesOwnMessages(t *testing.T) {
	req := require.New(t)
	h := startWorker(t)

	h.conn.send(`{"message":"alice"}`)
	for i := 0; i < 2; i++ {
		_, got := h.nextFrame(t, time.Second)
		req.True(got)
	}

	// When the named session posts a message
	h.conn.send(`{"message":"hi"}`)

	frame, got := h.nextFrame(t, time.Second)
	req.True(got)
	req.Equal("message", frame.Kind)
	req.Equal("alice", frame.From)
	req.Equal("hi", frame.Text)
}

func TestSessionWorker_SlotsStartAtBase_AndIncrease(t *testing.T) {
	req := require.New(t)
	h := startWorker(t)

	h.conn.send(`{"message":"alice"}`)

	// The ack and the Join race for the first two slots, but between them
	// the base slot and the one after it are both handed out exactly once.
	slots := make([]uint64, 0, 2)
	for i := 0; i < 2; i++ {
		frame, got := h.nextFrame(t, time.Second)
		req.True(got)
		slots = append(slots, frame.Slot)
	}
	req.ElementsMatch([]uint64{render.SlotBase, render.SlotBase + 1}, slots)
}

func TestSessionWorker_MalformedFrame_LocalError_ConnectionSurvives(t *testing.T) {
	req := require.New(t)
	h := startWorker(t)

	// When the very first frame is unparseable
	h.conn.send(`this is not json`)

	frame, got := h.nextFrame(t, time.Second)
	req.True(got)
	req.Equal("error", frame.Kind)
	req.Equal("malformed payload", frame.Text)

	// Then the connection is still usable
	h.conn.send(`{"message":"alice"}`)
	frame, got = h.nextFrame(t, time.Second)
	req.True(got)
	req.NotEqual("error", frame.Kind)
	req.Equal(1, h.registry.Len())
}

func TestSessionWorker_Teardown_PublishesLeaveExactlyOnce(t *testing.T) {
	req := require.New(t)
	h := startWorker(t)

	observer := h.bus.Subscribe()
	defer observer.Close()

	h.conn.send(`{"message":"alice"}`)

	ev, _, err := observer.Receive(context.Background())
	req.NoError(err)
	req.Equal(event.KindJoin, ev.Kind)

	// When the transport drops abruptly
	_ = h.conn.Close()
	h.waitClosed(t)

	// Then exactly one Leave is published and the registry entry is gone
	ev, _, err = observer.Receive(context.Background())
	req.NoError(err)
	req.Equal(event.KindLeave, ev.Kind)
	req.Equal("alice", ev.Text())
	req.Zero(h.registry.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, _, err = observer.Receive(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestSessionWorker_AnonymousDisconnect_NoLeave(t *testing.T) {
	req := require.New(t)
	h := startWorker(t)

	observer := h.bus.Subscribe()
	defer observer.Close()

	// When an anonymous connection drops without ever naming itself
	_ = h.conn.Close()
	h.waitClosed(t)

	req.Zero(h.registry.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, _, err := observer.Receive(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestSessionWorker_ParentCancel_TearsDown(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	bus := runtime.NewBus(log, 32)
	registry := runtime.NewRegistry()
	moderator, err := moderation.NewModerator(nil, '*', nil)
	req.NoError(err)
	telemetryChan := make(chan event.Technical, 64)
	service := services.NewChatService(log, bus, moderator, telemetryChan, 32)

	conn := newFakeConn()
	worker := workers.NewSessionWorker(log, conn, registry, bus,
		func() contract.EventSource { return bus.Subscribe() },
		service, render.NewJSONRenderer(), telemetryChan,
		workers.SessionConfig{
			OutboundBuffer: 16,
			ReadLimit:      4096,
			PongWait:       time.Minute,
			PingInterval:   50 * time.Second,
			WriteWait:      time.Second,
			GraceTimeout:   100 * time.Millisecond,
			SlotBase:       render.SlotBase,
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	req.Equal(1, registry.Len())

	// When the engine shuts down
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("worker ignored the parent cancellation")
	}
	req.Zero(registry.Len())
}
