// Package render turns broadcast events into the wire payloads clients see.
// The engine never looks inside a rendered payload, it only forwards it.
package render

import (
	"encoding/json"
	"ephemeral/contract"
	"ephemeral/domain/event"
	"fmt"
)

// SlotBase is the first display slot assigned to live traffic. A fresh client
// shows WelcomeLines before any event arrives, so slots start right after.
const SlotBase = uint64(len(WelcomeLines))

// WelcomeLines are printed by clients before any live event.
var WelcomeLines = [2]string{
	"Welcome!",
	"Please type in a username in the box below and submit to join",
}

// ServerName is the display name used when an event has no sender.
const ServerName = "Server"

// Frame is the JSON envelope written to clients, one per delivered event.
// Slot is the recipient's own monotonically increasing display position.
type Frame struct {
	Slot uint64 `json:"slot"`
	Kind string `json:"kind"`
	From string `json:"from"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

// JSONRenderer serializes events into Frames. Stateless, safe for concurrent
// use from every connection.
type JSONRenderer struct{}

var _ contract.Renderer = JSONRenderer{}

func NewJSONRenderer() JSONRenderer {
	return JSONRenderer{}
}

func (JSONRenderer) Render(ev event.BroadcastEvent, seq uint64) ([]byte, error) {
	from := ServerName
	if ev.Sender != nil {
		from = *ev.Sender
	}

	return json.Marshal(Frame{
		Slot: seq,
		Kind: string(ev.Kind),
		From: from,
		Text: displayText(ev),
		At:   ev.At.Unix(),
	})
}

// displayText mirrors the presentation rules clients expect: join and leave
// events carry the participant's name, everything else is shown verbatim.
func displayText(ev event.BroadcastEvent) string {
	switch ev.Kind {
	case event.KindJoin:
		return fmt.Sprintf("%s joined", ev.Text())
	case event.KindLeave:
		return fmt.Sprintf("%s left", ev.Text())
	default:
		return ev.Text()
	}
}
