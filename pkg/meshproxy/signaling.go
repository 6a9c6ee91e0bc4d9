package meshproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// signalMessage is the offer/answer/candidate exchange wire message,
// grounded on other_examples' robot-webrtc SFU's sfuMessage — the same
// Type/Name/Room/Offer/Answer/Candidate shape, carried over a gorilla
// websocket connection, generalized here to negotiate data-channel-only
// peer connections instead of media tracks.
type signalMessage struct {
	Type      string                     `json:"type"`
	Name      string                     `json:"name,omitempty"`
	From      string                     `json:"from,omitempty"`
	Room      string                     `json:"room,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// SignalingClient joins a mesh room as identity "server" over a
// websocket signaling connection, and negotiates one PeerConnection per
// remote participant the signaling server introduces, wiring each into
// a PionRoom so Proxy can drive it.
type SignalingClient struct {
	conn *websocket.Conn
	room *PionRoom
	log  *zap.Logger
}

// Dial connects to signalingURL as identity "server" in roomID and
// returns a SignalingClient ready to Run alongside a Proxy built on the
// returned PionRoom.
func Dial(ctx context.Context, signalingURL, roomID string, log *zap.Logger) (*SignalingClient, *PionRoom, error) {
	u, err := url.Parse(signalingURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing signaling url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, nil, fmt.Errorf("dialing signaling server: %w", err)
	}

	room, err := NewPionRoom("server", roomID)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("creating mesh room: %w", err)
	}

	if err := conn.WriteJSON(signalMessage{Type: "join", Name: "server", Room: roomID}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("sending join: %w", err)
	}

	return &SignalingClient{conn: conn, room: room, log: log}, room, nil
}

// Run reads signaling messages until ctx is canceled or the connection
// closes, negotiating a new participant PeerConnection on each offer.
func (c *SignalingClient) Run(ctx context.Context) error {
	defer c.conn.Close()
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		var msg signalMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading signaling message: %w", err)
		}

		switch msg.Type {
		case "offer":
			if err := c.handleOffer(ctx, msg); err != nil {
				c.log.Warn("meshproxy: handling offer failed",
					zap.String("participant", msg.From), zap.Error(err))
			}
		case "candidate":
			// ICE candidates are handled by pion's internal gathering in
			// this trickle-free join flow; nothing to relay yet.
		}
	}
}

func (c *SignalingClient) handleOffer(ctx context.Context, msg signalMessage) error {
	if msg.Offer == nil {
		return fmt.Errorf("offer message missing SDP")
	}

	pc, err := c.room.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("creating peer connection: %w", err)
	}

	if err := c.room.AddParticipant(ctx, msg.From, pc); err != nil {
		pc.Close()
		return fmt.Errorf("registering participant: %w", err)
	}

	if err := pc.SetRemoteDescription(*msg.Offer); err != nil {
		pc.Close()
		return fmt.Errorf("setting remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("creating answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return fmt.Errorf("setting local description: %w", err)
	}

	return c.conn.WriteJSON(signalMessage{
		Type:   "answer",
		Name:   "server",
		From:   "server",
		Room:   msg.Room,
		Answer: pc.LocalDescription(),
	})
}
