package protocol

import (
	"ephemeral/domain"
	"ephemeral/errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestDecode_CanonicalEnvelope(t *testing.T) {
	req := require.New(t)

	intent, err := Decode(websocket.TextMessage, []byte(`{"message":"hello there"}`))
	req.NoError(err)
	req.Equal(domain.DeclareOrSend{Text: "hello there"}, intent)
}

func TestDecode_TrimsSurroundingSpace(t *testing.T) {
	req := require.New(t)

	intent, err := Decode(websocket.TextMessage, []byte(`{"message":"  alice  "}`))
	req.NoError(err)
	req.Equal(domain.DeclareOrSend{Text: "alice"}, intent)
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	req := require.New(t)

	intent, err := Decode(websocket.TextMessage, []byte(`{"message":"hi","extra":42}`))
	req.NoError(err)
	req.Equal(domain.DeclareOrSend{Text: "hi"}, intent)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		data        []byte
	}{
		{name: "binary frame", messageType: websocket.BinaryMessage, data: []byte(`{"message":"hi"}`)},
		{name: "not json", messageType: websocket.TextMessage, data: []byte(`just text`)},
		{name: "wrong field type", messageType: websocket.TextMessage, data: []byte(`{"message":5}`)},
		{name: "missing field", messageType: websocket.TextMessage, data: []byte(`{"other":"hi"}`)},
		{name: "empty message", messageType: websocket.TextMessage, data: []byte(`{"message":""}`)},
		{name: "whitespace only", messageType: websocket.TextMessage, data: []byte(`{"message":"   "}`)},
		{name: "empty payload", messageType: websocket.TextMessage, data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			intent, err := Decode(tt.messageType, tt.data)
			req.ErrorIs(err, errors.ErrMalformedPayload)
			req.Nil(intent)
		})
	}
}
