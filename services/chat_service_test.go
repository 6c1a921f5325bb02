package services

import (
	"ephemeral/domain"
	"ephemeral/domain/event"
	"ephemeral/mocks"
	"ephemeral/moderation"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newService(t *testing.T, publisher *mocks.MockPublisher, bannedTerms []string) (*ChatService, chan event.Technical) {
	t.Helper()
	req := require.New(t)
	moderator, err := moderation.NewModerator(bannedTerms, '*', nil)
	req.NoError(err)
	telemetryChan := make(chan event.Technical, 16)
	return NewChatService(slog.Default(), publisher, moderator, telemetryChan, 32), telemetryChan
}

func TestChatService_FirstFrame_NamesTheSession(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	service, _ := newService(t, publisher, nil)
	session := domain.NewSession(4)

	// Then a Join event reaches the bus, carrying the name as content
	publisher.EXPECT().
		Publish(gomock.Any()).
		Do(func(ev event.BroadcastEvent) {
			req.Equal(event.KindJoin, ev.Kind)
			req.Nil(ev.Sender)
			req.Equal("alice", ev.Text())
		}).
		Times(1)

	// When the first frame arrives on an anonymous session
	reply := service.Handle(session, domain.DeclareOrSend{Text: "alice"})

	// And the session is named with a local ack, not a broadcast
	req.True(session.Named())
	name, _ := session.Name()
	req.Equal("alice", name)
	req.NotNil(reply)
	req.Equal(event.KindOk, reply.Kind)
	req.Equal("joined as alice", reply.Text())
}

func TestChatService_NamedSession_PublishesMessages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	service, telemetryChan := newService(t, publisher, nil)

	session := domain.NewSession(4)
	session.SetName("alice")

	publisher.EXPECT().
		Publish(gomock.Any()).
		Do(func(ev event.BroadcastEvent) {
			req.Equal(event.KindMessage, ev.Kind)
			req.NotNil(ev.Sender)
			req.Equal("alice", *ev.Sender)
			req.Equal("hi", ev.Text())
		}).
		Times(1)

	reply := service.Handle(session, domain.DeclareOrSend{Text: "hi"})

	// Then messages have no local reply and a telemetry trace
	req.Nil(reply)
	evt := <-telemetryChan
	req.Equal(event.MessagePublishedType, evt.Type)
}

func TestChatService_Message_IsCensored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	service, telemetryChan := newService(t, publisher, []string{"badger"})

	session := domain.NewSession(4)
	session.SetName("alice")

	publisher.EXPECT().
		Publish(gomock.Any()).
		Do(func(ev event.BroadcastEvent) {
			req.Equal("the ****** bites", ev.Text())
		}).
		Times(1)

	service.Handle(session, domain.DeclareOrSend{Text: "the badger bites"})

	// Then the censorship hit is traced before the publish trace
	evt := <-telemetryChan
	req.Equal(event.CensorshipHitType, evt.Type)
	payload, ok := evt.Payload.(event.CensorshipHit)
	req.True(ok)
	req.Equal("badger", payload.Term)
	req.Equal("alice", payload.Sender)
}

func TestChatService_NameIsCapped_NotCensored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	service, _ := newService(t, publisher, []string{"badger"})
	session := domain.NewSession(4)

	var published event.BroadcastEvent
	publisher.EXPECT().
		Publish(gomock.Any()).
		Do(func(ev event.BroadcastEvent) { published = ev }).
		Times(1)

	// When a very long, banned-term name is declared
	longName := "badger_" + strings.Repeat("x", 64)
	service.Handle(session, domain.DeclareOrSend{Text: longName})

	// Then the name is capped to the configured rune budget, uncensored
	name, _ := session.Name()
	req.Len([]rune(name), 32)
	req.Contains(name, "badger")
	req.Equal(event.KindJoin, published.Kind)
}

func TestChatService_SecondDeclare_IsAMessage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	service, _ := newService(t, publisher, nil)
	session := domain.NewSession(4)

	kinds := make([]event.Kind, 0, 2)
	publisher.EXPECT().
		Publish(gomock.Any()).
		Do(func(ev event.BroadcastEvent) { kinds = append(kinds, ev.Kind) }).
		Times(2)

	service.Handle(session, domain.DeclareOrSend{Text: "alice"})
	service.Handle(session, domain.DeclareOrSend{Text: "alice"})

	// Then exactly one Join happens, before any Message
	req.Equal([]event.Kind{event.KindJoin, event.KindMessage}, kinds)
}
