package event

import "time"

// Type tags technical events carried on the telemetry channel.
// These never reach chat participants; they feed counters and logs.
type Type string

const (
	SessionOpenedType       Type = "SESSION_OPENED"
	SessionClosedType       Type = "SESSION_CLOSED"
	MessagePublishedType    Type = "MESSAGE_PUBLISHED"
	CensorshipHitType       Type = "CENSORSHIP_HIT"
	BusOverrunType          Type = "BUS_OVERRUN"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
)

// Technical is the envelope dispatched to event handlers.
type Technical struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

func NewTechnical(t Type, payload any) Technical {
	return Technical{Type: t, CreatedAt: time.Now().UTC(), Payload: payload}
}

type SessionOpened struct {
	SessionID string
}

type SessionClosed struct {
	SessionID string
	Named     bool
}

type MessagePublished struct {
	Sender string
}

type CensorshipHit struct {
	Sender string
	Term   string
}

type BusOverrun struct {
	SessionID string
	Dropped   uint64
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}
