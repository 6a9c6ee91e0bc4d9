package meshproxy

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// sendQueueCap is the bounded per-participant mesh-to-UDP queue depth
// of spec.md §4.3; when the queue is full, routeToUDP drops the new
// datagram rather than blocking the room-event loop.
const sendQueueCap = 256

// inboundQueueCap is the bounded depth of the shared UDP-to-mesh queue
// that every participant's UDP receiver feeds and drainToRoom empties
// into the mesh room.
const inboundQueueCap = 1024

// participantSession is the per-participant bookkeeping the Proxy's
// room-event loop maintains: a cancel func for its UDP sender and
// receiver tasks, and the channel its sender task drains toward the
// local UDP game server.
type participantSession struct {
	cancel    context.CancelFunc
	sendToUDP chan []byte
}

// inboundDatagram is one payload read off a participant's local UDP
// socket, addressed for the shared publisher-drain loop.
type inboundDatagram struct {
	participant string
	payload     []byte
}

// Proxy owns exactly one mesh-room connection (identity "server") and
// bridges it to one local UDP game server per spec.md §4.3: no
// reordering, dedup, or reliable-delivery guarantees are provided —
// datagrams are forwarded at most once, best-effort, in whatever order
// the room and sockets deliver them.
type Proxy struct {
	room     Room
	gamePort int
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*participantSession

	inbound chan inboundDatagram
}

func NewProxy(room Room, gamePort int, log *zap.Logger) *Proxy {
	return &Proxy{
		room:     room,
		gamePort: gamePort,
		log:      log,
		sessions: make(map[string]*participantSession),
		inbound:  make(chan inboundDatagram, inboundQueueCap),
	}
}

// Run drives the proxy until ctx is cancelled or the room disconnects:
// it dispatches room events (spawning/tearing down per-participant UDP
// tasks) and owns the single publisher-drain loop that is the room's
// only writer, per spec.md §9's single-writer rule.
func (p *Proxy) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.drainToRoom(ctx)
	}()

	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			p.teardownAll()
			return ctx.Err()
		case ev, ok := <-p.room.Events():
			if !ok {
				p.teardownAll()
				return nil
			}
			switch e := ev.(type) {
			case ParticipantConnected:
				p.startParticipant(ctx, e.Participant)
			case ParticipantDisconnected:
				p.stopParticipant(e.Participant)
			case DataReceived:
				p.routeToUDP(e)
			case Disconnected:
				p.teardownAll()
				return e.Err
			}
		}
	}
}

// drainToRoom is the proxy's single publisher: it owns the room handle
// exclusively and forwards every queued datagram from every
// participant's local UDP receiver onto the mesh room.
func (p *Proxy) drainToRoom(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dg := <-p.inbound:
			topic := fmt.Sprintf("udp:%s", dg.participant)
			if err := p.room.Publish(ctx, topic, dg.payload); err != nil {
				p.log.Warn("meshproxy: publish failed",
					zap.String("participant", dg.participant), zap.Error(err))
			}
		}
	}
}

func (p *Proxy) startParticipant(ctx context.Context, participant string) {
	p.mu.Lock()
	if _, exists := p.sessions[participant]; exists {
		p.mu.Unlock()
		return
	}
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &participantSession{
		cancel:    cancel,
		sendToUDP: make(chan []byte, sendQueueCap),
	}
	p.sessions[participant] = sess
	p.mu.Unlock()

	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: p.gamePort})
	if err != nil {
		p.log.Warn("meshproxy: dialing local game server failed",
			zap.String("participant", participant), zap.Error(err))
		p.stopParticipant(participant)
		return
	}

	go p.runUDPSender(sessCtx, conn, sess.sendToUDP)
	go p.runUDPReceiver(sessCtx, conn, participant)
}

func (p *Proxy) stopParticipant(participant string) {
	p.mu.Lock()
	sess, ok := p.sessions[participant]
	if ok {
		delete(p.sessions, participant)
	}
	p.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

func (p *Proxy) teardownAll() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*participantSession)
	p.mu.Unlock()
	for _, sess := range sessions {
		sess.cancel()
	}
}

// routeToUDP delivers a mesh-room datagram to its participant's local
// UDP sender queue, dropping it if the queue is full rather than
// stalling the room's event loop.
func (p *Proxy) routeToUDP(ev DataReceived) {
	p.mu.Lock()
	sess, ok := p.sessions[ev.Participant]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case sess.sendToUDP <- ev.Payload:
	default:
		p.log.Warn("meshproxy: dropping datagram, send queue full",
			zap.String("participant", ev.Participant))
	}
}

func (p *Proxy) runUDPSender(ctx context.Context, conn *net.UDPConn, queue <-chan []byte) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-queue:
			if _, err := conn.Write(payload); err != nil {
				p.log.Warn("meshproxy: writing to local game server failed", zap.Error(err))
			}
		}
	}
}

func (p *Proxy) runUDPReceiver(ctx context.Context, conn *net.UDPConn, participant string) {
	buf := make([]byte, 65535)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("meshproxy: reading from local game server failed",
				zap.String("participant", participant), zap.Error(err))
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		select {
		case p.inbound <- inboundDatagram{participant: participant, payload: payload}:
		case <-ctx.Done():
			return
		default:
			p.log.Warn("meshproxy: dropping datagram, inbound queue full",
				zap.String("participant", participant))
		}
	}
}
