package render

import (
	"encoding/json"
	"ephemeral/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeFrame(t *testing.T, payload []byte) Frame {
	t.Helper()
	var frame Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func TestJSONRenderer_Message(t *testing.T) {
	req := require.New(t)
	renderer := NewJSONRenderer()

	payload, err := renderer.Render(event.NewMessage("alice", "hi"), 7)
	req.NoError(err)

	frame := decodeFrame(t, payload)
	req.Equal(uint64(7), frame.Slot)
	req.Equal("message", frame.Kind)
	req.Equal("alice", frame.From)
	req.Equal("hi", frame.Text)
	req.NotZero(frame.At)
}

func TestJSONRenderer_JoinAndLeave_CarryTheName(t *testing.T) {
	req := require.New(t)
	renderer := NewJSONRenderer()

	payload, err := renderer.Render(event.NewJoin("bob"), SlotBase)
	req.NoError(err)
	frame := decodeFrame(t, payload)
	req.Equal("bob joined", frame.Text)
	req.Equal(ServerName, frame.From)

	payload, err = renderer.Render(event.NewLeave("bob"), SlotBase+1)
	req.NoError(err)
	frame = decodeFrame(t, payload)
	req.Equal("bob left", frame.Text)
	req.Equal(ServerName, frame.From)
}

func TestJSONRenderer_NilSender_RendersAsServer(t *testing.T) {
	req := require.New(t)
	renderer := NewJSONRenderer()

	payload, err := renderer.Render(event.NewAlert("server is shutting down"), 0)
	req.NoError(err)

	frame := decodeFrame(t, payload)
	req.Equal(ServerName, frame.From)
	req.Equal("alert", frame.Kind)
	req.Equal("server is shutting down", frame.Text)
}

func TestSlotBase_MatchesWelcomeLines(t *testing.T) {
	require.Equal(t, uint64(2), SlotBase)
}
