package event

import (
	"time"

	"github.com/samber/lo"
)

// Kind discriminates broadcast event variants on the wire and in fan-out.
type Kind string

const (
	KindAlert   Kind = "alert"
	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
	KindOk      Kind = "ok"
	KindError   Kind = "error"
	KindMessage Kind = "message"
)

// BroadcastEvent is the immutable value fanned out to every subscriber.
// A nil Sender means the event originates from the server itself.
// Content is kind-dependent: for Join and Leave it carries the participant's
// own name, for Message the chat text, for the remaining kinds a notice.
type BroadcastEvent struct {
	Kind    Kind
	Sender  *string
	Content *string
	At      time.Time
}

func NewJoin(name string) BroadcastEvent {
	return BroadcastEvent{Kind: KindJoin, Content: lo.ToPtr(name), At: time.Now().UTC()}
}

func NewLeave(name string) BroadcastEvent {
	return BroadcastEvent{Kind: KindLeave, Content: lo.ToPtr(name), At: time.Now().UTC()}
}

func NewMessage(sender, text string) BroadcastEvent {
	return BroadcastEvent{
		Kind:    KindMessage,
		Sender:  lo.ToPtr(sender),
		Content: lo.ToPtr(text),
		At:      time.Now().UTC(),
	}
}

func NewAlert(text string) BroadcastEvent {
	return BroadcastEvent{Kind: KindAlert, Content: lo.ToPtr(text), At: time.Now().UTC()}
}

func NewOk(text string) BroadcastEvent {
	return BroadcastEvent{Kind: KindOk, Content: lo.ToPtr(text), At: time.Now().UTC()}
}

func NewError(text string) BroadcastEvent {
	return BroadcastEvent{Kind: KindError, Content: lo.ToPtr(text), At: time.Now().UTC()}
}

// Text returns the content payload or the empty string.
func (e BroadcastEvent) Text() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}
