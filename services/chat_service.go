// Package services holds the application services sitting between the
// transport layer and the runtime engine.
package services

import (
	"ephemeral/contract"
	"ephemeral/domain"
	"ephemeral/domain/event"
	"ephemeral/moderation"
	"fmt"
	"log/slog"
)

// ChatService advances a session's state machine for each decoded intent.
//
// The protocol has a single client intent: a raw text payload. What it means
// depends on the session state. The first one names the session and announces
// the join; every later one is a chat message fanned out through the bus.
// A name, once set, never changes for the session's lifetime.
type ChatService struct {
	log           *slog.Logger
	publisher     contract.Publisher
	moderator     *moderation.Moderator
	telemetryChan chan<- event.Technical
	maxNameLength int
}

var _ contract.IntentHandler = (*ChatService)(nil)

func NewChatService(log *slog.Logger, publisher contract.Publisher,
	moderator *moderation.Moderator, telemetryChan chan<- event.Technical,
	maxNameLength int) *ChatService {
	return &ChatService{
		log:           log,
		publisher:     publisher,
		moderator:     moderator,
		telemetryChan: telemetryChan,
		maxNameLength: maxNameLength,
	}
}

// Handle interprets one intent against the session's current state.
// The returned event, when non-nil, is a local reply for the originating
// session only and must not travel through the bus.
func (s *ChatService) Handle(session *domain.Session, intent domain.Intent) *event.BroadcastEvent {
	declare, ok := intent.(domain.DeclareOrSend)
	if !ok {
		s.log.Warn("unknown intent type, ignoring", "session", session.ID)
		return nil
	}

	if !session.Named() {
		return s.declareName(session, declare.Text)
	}
	return s.postMessage(session, declare.Text)
}

// declareName consumes the first text frame as the display name. The name is
// identity, not content: it is capped in length but never censored.
func (s *ChatService) declareName(session *domain.Session, name string) *event.BroadcastEvent {
	name = capRunes(name, s.maxNameLength)

	if !session.SetName(name) {
		// Lost a race against our own inbound duty; treat as a message.
		return s.postMessage(session, name)
	}

	s.log.Info("session named", "session", session.ID, "name", name)
	s.publisher.Publish(event.NewJoin(name))

	reply := event.NewOk(fmt.Sprintf("joined as %s", name))
	return &reply
}

// postMessage moderates and broadcasts one chat message from a named session.
func (s *ChatService) postMessage(session *domain.Session, text string) *event.BroadcastEvent {
	name, _ := session.Name()

	censored, hits := s.moderator.Censor(text)
	for _, term := range hits {
		s.emit(event.NewTechnical(event.CensorshipHitType, event.CensorshipHit{Sender: name, Term: term}))
	}

	s.publisher.Publish(event.NewMessage(name, censored))
	s.emit(event.NewTechnical(event.MessagePublishedType, event.MessagePublished{Sender: name}))

	if lang, foreign := s.moderator.DetectForeignLanguage(text); foreign {
		s.publisher.Publish(event.NewAlert(fmt.Sprintf("%s wrote in %s", name, lang)))
	}
	return nil
}

// emit pushes a technical event without ever blocking the chat path.
func (s *ChatService) emit(evt event.Technical) {
	select {
	case s.telemetryChan <- evt:
	default:
		s.log.Debug("telemetry event lost", "type", string(evt.Type))
	}
}

func capRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
