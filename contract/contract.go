//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"ephemeral/domain"
	"ephemeral/domain/event"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Registry is the shared table of live sessions.
// An entry exists exactly as long as its connection has not completed teardown.
type Registry interface {
	Insert(session *domain.Session) error
	Remove(id uuid.UUID)
	Lookup(id uuid.UUID) (*domain.Session, error)
	SnapshotNamed() []string
	Len() int
}

// Publisher is the write side of the broadcast bus.
// Publish must never block, whatever the subscribers are doing.
type Publisher interface {
	Publish(ev event.BroadcastEvent)
}

// EventSource is one subscriber's cursor over the broadcast bus.
// Receive reports, next to each event, how many events were dropped for this
// subscriber since the previous successful receive.
type EventSource interface {
	Receive(ctx context.Context) (event.BroadcastEvent, uint64, error)
	Close()
}

// Renderer turns an abstract broadcast event into the wire payload for one
// recipient. seq is that recipient's monotonically increasing display slot.
type Renderer interface {
	Render(ev event.BroadcastEvent, seq uint64) ([]byte, error)
}

// IntentHandler advances a session's state machine for one decoded intent.
// The returned event, when non-nil, is a local reply for the originating
// session only and must not go through the bus.
type IntentHandler interface {
	Handle(session *domain.Session, intent domain.Intent) *event.BroadcastEvent
}

// FrameConn is the subset of a websocket connection the session duties use.
// *websocket.Conn satisfies it.
type FrameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// BusStats is a point-in-time view of bus activity for telemetry.
type BusStats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}
