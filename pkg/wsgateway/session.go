package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/ratelimit"
)

// PingTimeout is the liveness window of spec.md §4.5/§5: a session with
// no pong within this window is canceled.
const PingTimeout = 5 * time.Minute

// Outbound binary envelope discriminators, per spec.md §4.5.
const (
	EnvelopeMessage      byte = 0
	EnvelopeTyping       byte = 1
	EnvelopeStopTyping   byte = 2
	EnvelopeMemberJoined byte = 3
	EnvelopeMemberLeft   byte = 4
	EnvelopePartyInfo    byte = 5
	EnvelopeInvite       byte = 6
)

// Broker is the minimal publish/subscribe surface a Session needs. The
// message broker itself is an external collaborator per spec.md §1;
// this interface is the boundary the gateway consumes.
type Broker interface {
	Subscribe(ctx context.Context, subject string) (<-chan []byte, func(), error)
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Connection is the subset of *websocket.Conn a Session drives, narrowed
// for testability.
type Connection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ Connection = (*websocket.Conn)(nil)

// Session is one authenticated WS connection: {user_id, device_id,
// conn_id, last_pong_timestamp, party_id?, enable_self_transients},
// per spec.md §3.
type Session struct {
	UserID   string
	DeviceID string
	ConnID   string

	conn    Connection
	broker  Broker
	limiter *ratelimit.Limiter
	log     *zap.Logger

	mu               sync.Mutex
	partyID          string
	enableSelf       bool
	lastPong         atomic.Int64 // unix nanos

	outbound chan []byte
	cancel   context.CancelFunc
}

func NewSession(userID, deviceID string, conn Connection, broker Broker, limiter *ratelimit.Limiter, log *zap.Logger) *Session {
	s := &Session{
		UserID:   userID,
		DeviceID: deviceID,
		ConnID:   uuid.NewString(),
		conn:     conn,
		broker:   broker,
		limiter:  limiter,
		log:      log,
		outbound: make(chan []byte, 256),
	}
	s.lastPong.Store(time.Now().UnixNano())
	return s
}

// Run subscribes to the per-user and broadcast subjects and spawns the
// WS I/O, proxy, and keepalive tasks described in spec.md §4.5. It blocks
// until the session ends.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	transient, unsubTransient, err := s.broker.Subscribe(ctx, "dorch.user."+s.UserID)
	if err != nil {
		return err
	}
	defer unsubTransient()

	master, unsubMaster, err := s.broker.Subscribe(ctx, "dorch.broadcast")
	if err != nil {
		return err
	}
	defer unsubMaster()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.runIO(ctx) }()
	go func() { defer wg.Done(); s.runProxy(ctx, transient, master) }()
	go func() { defer wg.Done(); s.runKeepaliveWatchdog(ctx) }()
	wg.Wait()
	return nil
}

// runIO sends WebSocket ping control frames every PING_TIMEOUT/4 (min 10s)
// and decodes inbound JSON frames. It sends no application-layer ping
// message, and a control-frame pong does not update last_pong: only an
// inbound {"type":"pong"} message does.
func (s *Session) runIO(ctx context.Context) {
	pingInterval := PingTimeout / 4
	if pingInterval < 10*time.Second {
		pingInterval = 10 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.cancel()
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.cancel()
			return
		}
		s.handleInbound(ctx, data)
	}
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type messagePayload struct {
	PartyID string `json:"party_id"`
	Content string `json:"content"`
}

func (s *Session) handleInbound(ctx context.Context, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("wsgateway: malformed inbound message", zap.String("conn_id", s.ConnID), zap.Error(err))
		return
	}

	switch msg.Type {
	case "pong":
		s.lastPong.Store(time.Now().UnixNano())
	case "enable_self_transients":
		s.mu.Lock()
		s.enableSelf = true
		s.mu.Unlock()
	case "typing", "stop_typing":
		s.publishTransient(ctx, msg.Type, nil)
	case "message":
		var payload messagePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		s.mu.Lock()
		currentParty := s.partyID
		s.mu.Unlock()
		if payload.PartyID != currentParty {
			return
		}
		s.publishTransient(ctx, msg.Type, []byte(payload.Content))
	}
}

func (s *Session) publishTransient(ctx context.Context, msgType string, content []byte) {
	s.mu.Lock()
	partyID := s.partyID
	s.mu.Unlock()
	if partyID == "" {
		return
	}

	var discriminator byte
	switch msgType {
	case "typing":
		discriminator = EnvelopeTyping
	case "stop_typing":
		discriminator = EnvelopeStopTyping
	case "message":
		discriminator = EnvelopeMessage
	default:
		return
	}

	payload := make([]byte, 0, 1+16+16+len(content))
	payload = append(payload, discriminator)
	payload = append(payload, partyUUIDBytes(partyID)...)
	payload = append(payload, userUUIDBytes(s.UserID)...)
	payload = append(payload, content...)

	if err := s.broker.Publish(ctx, "dorch.party."+partyID, payload); err != nil {
		s.log.Warn("wsgateway: publish failed", zap.String("conn_id", s.ConnID), zap.Error(err))
	}
}

// runProxy merges transient and master streams into the outbound
// WebSocket, applying the self-transient gate of spec.md §4.5.
func (s *Session) runProxy(ctx context.Context, transient, master <-chan []byte) {
	for {
		var payload []byte
		select {
		case <-ctx.Done():
			return
		case payload = <-transient:
			if s.shouldSuppressSelfTransient(payload) {
				continue
			}
		case payload = <-master:
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			s.cancel()
			return
		}
	}
}

// shouldSuppressSelfTransient implements spec.md §4.5's self-transient
// gate: Typing/StopTyping envelopes whose embedded sender-user-id (bytes
// 17..33) equals this session's user id are suppressed unless the
// client explicitly enabled self-transients.
func (s *Session) shouldSuppressSelfTransient(payload []byte) bool {
	if len(payload) < 33 {
		return false
	}
	if payload[0] != EnvelopeTyping && payload[0] != EnvelopeStopTyping {
		return false
	}
	senderID := payload[17:33]

	s.mu.Lock()
	enable := s.enableSelf
	s.mu.Unlock()
	if enable {
		return false
	}
	return equalUUIDBytes(senderID, userUUIDBytes(s.UserID))
}

// runKeepaliveWatchdog checks last_pong every PING_TIMEOUT and cancels
// the session if the gap exceeds it, per spec.md §4.5 and invariant 6.
func (s *Session) runKeepaliveWatchdog(ctx context.Context) {
	ticker := time.NewTicker(PingTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastPong.Load())
			if time.Since(last) > PingTimeout {
				s.log.Info("wsgateway: liveness timeout", zap.String("conn_id", s.ConnID))
				s.cancel()
				return
			}
		}
	}
}

// SetParty atomically updates the session's current party, per spec.md
// §3 ("a user has at most one party; joining a new one atomically leaves
// the old").
func (s *Session) SetParty(partyID string) {
	s.mu.Lock()
	s.partyID = partyID
	s.mu.Unlock()
}
