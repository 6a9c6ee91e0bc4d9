// Package meshproxy implements the UDP↔mesh proxy of spec.md §4.3: a
// single-threaded-cooperative server inside each game pod that owns one
// mesh-room connection and forwards datagrams between it and a local
// UDP game server, one per-participant session at a time.
//
// The room/participant bookkeeping shape (a room type holding a mutex
// and a map of participant sessions, with a getPeer-style lookup) is
// grounded on other_examples' robot-webrtc SFU (sfuRoom/sfuPeer); the
// actual data-channel transport is pion/webrtc/v4's DataChannel API,
// the only WebRTC library anywhere in the retrieval pack.
package meshproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// RoomEvent is the closed set of events a mesh room delivers, per
// spec.md §4.3.
type RoomEvent interface{ isRoomEvent() }

type ParticipantConnected struct{ Participant string }

func (ParticipantConnected) isRoomEvent() {}

type ParticipantDisconnected struct{ Participant string }

func (ParticipantDisconnected) isRoomEvent() {}

type DataReceived struct {
	Topic       string
	Payload     []byte
	Participant string
}

func (DataReceived) isRoomEvent() {}

type Disconnected struct{ Err error }

func (Disconnected) isRoomEvent() {}

// Room is the mesh-room connection a Proxy drives. Only one owner may
// publish on a room at a time (spec.md §9), so callers must route all
// publishes through a single task.
type Room interface {
	Events() <-chan RoomEvent
	// Publish sends payload on topic, unreliable delivery.
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// PionRoom implements Room by holding one *webrtc.PeerConnection per
// participant, with an unordered, unreliable DataChannel carrying UDP
// datagrams topic-tagged per spec.md §4.3 ("topic=udp:<participant>").
// Signaling (SDP offer/answer exchange) to establish these peer
// connections is an external collaborator — spec.md §1 scopes routing
// layers as out of scope — so PionRoom exposes AddParticipant for the
// signaling layer to drive. It has no RemoveParticipant: a participant
// is dropped when its data channel closes.
type PionRoom struct {
	identity string
	roomID   string
	api      *webrtc.API

	mu       sync.Mutex
	channels map[string]*webrtc.DataChannel
	conns    map[string]*webrtc.PeerConnection

	events chan RoomEvent
}

func NewPionRoom(identity, roomID string) (*PionRoom, error) {
	m := &webrtc.MediaEngine{}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))
	return &PionRoom{
		identity: identity,
		roomID:   roomID,
		api:      api,
		channels: make(map[string]*webrtc.DataChannel),
		conns:    make(map[string]*webrtc.PeerConnection),
		events:   make(chan RoomEvent, 64),
	}, nil
}

func (r *PionRoom) Events() <-chan RoomEvent { return r.events }

// AddParticipant registers a new peer connection for participant and
// opens its unordered, unreliable data channel, emitting
// ParticipantConnected once the channel opens.
func (r *PionRoom) AddParticipant(ctx context.Context, participant string, pc *webrtc.PeerConnection) error {
	ordered := false
	maxRetransmits := uint16(0)
	channel, err := pc.CreateDataChannel(fmt.Sprintf("udp:%s", participant), &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		return fmt.Errorf("creating data channel for %s: %w", participant, err)
	}

	channel.OnOpen(func() {
		r.mu.Lock()
		r.channels[participant] = channel
		r.conns[participant] = pc
		r.mu.Unlock()
		r.emit(ParticipantConnected{Participant: participant})
	})
	channel.OnClose(func() {
		r.mu.Lock()
		delete(r.channels, participant)
		delete(r.conns, participant)
		r.mu.Unlock()
		r.emit(ParticipantDisconnected{Participant: participant})
	})
	channel.OnMessage(func(msg webrtc.DataChannelMessage) {
		r.emit(DataReceived{Topic: channel.Label(), Payload: msg.Data, Participant: participant})
	})

	return nil
}

func (r *PionRoom) emit(ev RoomEvent) {
	select {
	case r.events <- ev:
	default:
		// Room event buffer full: drop rather than block the
		// data-channel callback goroutine.
	}
}

// Publish writes payload to the participant named by topic
// ("udp:<participant>"), per spec.md §4.3's publisher-drain contract.
func (r *PionRoom) Publish(ctx context.Context, topic string, payload []byte) error {
	participant := participantFromTopic(topic)

	r.mu.Lock()
	channel, ok := r.channels[participant]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no open channel for participant %s", participant)
	}
	return channel.Send(payload)
}

func participantFromTopic(topic string) string {
	const prefix = "udp:"
	if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
		return topic[len(prefix):]
	}
	return topic
}

func (r *PionRoom) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, pc := range r.conns {
		if err := pc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	close(r.events)
	return firstErr
}
