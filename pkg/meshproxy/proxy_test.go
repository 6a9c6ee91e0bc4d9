package meshproxy

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeRoom struct {
	events      chan RoomEvent
	published   chan publishedMsg
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{
		events:    make(chan RoomEvent, 16),
		published: make(chan publishedMsg, 16),
	}
}

func (f *fakeRoom) Events() <-chan RoomEvent { return f.events }

func (f *fakeRoom) Publish(ctx context.Context, topic string, payload []byte) error {
	f.published <- publishedMsg{topic: topic, payload: payload}
	return nil
}

func (f *fakeRoom) Close() error { close(f.events); return nil }

func TestParticipantFromTopic(t *testing.T) {
	if got := participantFromTopic("udp:alice"); got != "alice" {
		t.Fatalf("expected alice, got %s", got)
	}
	if got := participantFromTopic("malformed"); got != "malformed" {
		t.Fatalf("expected passthrough for malformed topic, got %s", got)
	}
}

func TestProxyIgnoresDisconnectForUnknownParticipant(t *testing.T) {
	room := newFakeRoom()
	p := NewProxy(room, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	// A disconnect for a participant that never connected must not
	// create a session.
	room.events <- ParticipantDisconnected{Participant: "ghost"}

	time.Sleep(10 * time.Millisecond)

	p.mu.Lock()
	_, exists := p.sessions["ghost"]
	p.mu.Unlock()
	if exists {
		t.Fatalf("expected no session for a participant that never connected")
	}
}

func TestRouteToUDPNoopsForUnknownParticipant(t *testing.T) {
	room := newFakeRoom()
	p := NewProxy(room, 0, zap.NewNop())

	p.routeToUDP(DataReceived{Topic: "udp:nobody", Payload: []byte("x"), Participant: "nobody"})
}
