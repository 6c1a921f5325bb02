// Package protocol decodes inbound transport frames into client intents.
package protocol

import (
	"encoding/json"
	"ephemeral/domain"
	"ephemeral/errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// Envelope is the canonical inbound frame shape.
type Envelope struct {
	Message string `json:"message"`
}

// Decode parses one inbound frame into an intent.
//
// Every failure wraps errors.ErrMalformedPayload: a non-text frame, a payload
// that is not the expected JSON envelope, or a message empty after trimming.
// Decode failures are local to the offending frame and never fatal to the
// connection.
func Decode(messageType int, data []byte) (domain.Intent, error) {
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("%w: non-text frame type %d", errors.ErrMalformedPayload, messageType)
	}

	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrMalformedPayload, err)
	}

	text := strings.TrimSpace(envelope.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", errors.ErrMalformedPayload)
	}

	return domain.DeclareOrSend{Text: text}, nil
}
