package srp

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/srp/srp6a"
)

// Server is the UDP SRP authentication server of spec.md §4.2: a
// single-threaded-cooperative packet dispatcher sitting in front of a
// mutex-guarded session table.
type Server struct {
	conn    *net.UDPConn
	users   UserStore
	table   *sessionTable
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewServer binds a UDP listener at addr and returns a Server ready to
// Serve. Grounded on codewire's ListenUDP helper for the listen idiom.
func NewServer(addr string, users UserStore, log *zap.Logger) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		conn:    conn,
		users:   users,
		table:   newSessionTable(),
		log:     log,
		nowFunc: time.Now,
	}, nil
}

func (s *Server) Close() error { return s.conn.Close() }

// Serve reads datagrams until ctx is canceled or the socket errors.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, MaxPacketSize)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		s.handlePacket(ctx, packet, raddr)
	}
}

func (s *Server) handlePacket(ctx context.Context, packet []byte, raddr *net.UDPAddr) {
	magic, err := PeekMagic(packet)
	if err != nil {
		return
	}
	switch magic {
	case MagicNegotiate:
		s.handleNegotiate(ctx, packet, raddr)
	case MagicStep1:
		s.handleStep1(packet, raddr)
	case MagicStep3:
		s.handleStep3(packet, raddr)
	default:
		// Unknown magics (and S→C magics received by the server) are
		// silently dropped per spec.md §4.2.
	}
}

func (s *Server) send(raddr *net.UDPAddr, buf []byte) {
	if _, err := s.conn.WriteToUDP(buf, raddr); err != nil {
		s.log.Warn("srp: write failed", zap.String("remote", raddr.String()), zap.Error(err))
	}
}

func (s *Server) handleNegotiate(ctx context.Context, packet []byte, raddr *net.UDPAddr) {
	req, err := DecodeNegotiate(packet)
	if err != nil {
		return
	}
	if req.Proto != ProtocolVersion {
		s.send(raddr, EncodeUserError(UserError{Code: UserErrOutdatedProtocol, ClientSessionID: req.ClientSessionID}))
		return
	}

	user, err := s.users.Lookup(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.send(raddr, EncodeUserError(UserError{Code: UserErrNoExist, ClientSessionID: req.ClientSessionID}))
		} else {
			s.log.Warn("srp: user lookup failed", zap.String("username", req.Username), zap.Error(err))
			s.send(raddr, EncodeUserError(UserError{Code: UserErrTryLater, ClientSessionID: req.ClientSessionID}))
		}
		return
	}
	if user.Disabled {
		s.send(raddr, EncodeUserError(UserError{Code: UserErrWillNotAuth, ClientSessionID: req.ClientSessionID}))
		return
	}
	if len(user.Salt) == 0 || len(user.Salt) > 255 {
		s.send(raddr, EncodeUserError(UserError{Code: UserErrTryLater, ClientSessionID: req.ClientSessionID}))
		return
	}

	sess := &session{
		clientSessionID: req.ClientSessionID,
		createdAt:       s.nowFunc(),
		state: srpState{
			userSecrets: userSecrets{
				username: user.Username,
				salt:     user.Salt,
				verifier: user.Verifier,
			},
		},
	}
	sessionID, err := s.table.insert(s.nowFunc(), sess)
	if err != nil {
		s.log.Error("srp: session allocation failed", zap.Error(err))
		s.send(raddr, EncodeUserError(UserError{Code: UserErrTryLater, ClientSessionID: req.ClientSessionID}))
		return
	}

	s.send(raddr, EncodeNegotiateAck(NegotiateAck{
		Proto:           ProtocolVersion,
		ClientSessionID: req.ClientSessionID,
		SessionID:       sessionID,
		Salt:            user.Salt,
		Username:        user.Username,
	}))
}

func (s *Server) handleStep1(packet []byte, raddr *net.UDPAddr) {
	req, err := DecodeStep1(packet)
	if err != nil {
		return
	}
	now := s.nowFunc()
	sess, ok := s.table.lookup(now, req.SessionID)
	if !ok {
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrNoExist, SessionID: req.SessionID}))
		return
	}

	aPub := bytesToBig(req.A)
	if err := srp6a.CheckAPublic(aPub); err != nil {
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrVerifierUnsafe, SessionID: req.SessionID}))
		return
	}

	b, bPub, err := srp6a.ServerEphemeral(sess.state.userSecrets.verifier)
	if err != nil {
		s.log.Error("srp: server ephemeral generation failed", zap.Error(err))
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrVerifierUnsafe, SessionID: req.SessionID}))
		return
	}

	sess.state.aPub = aPub
	sess.state.b = b
	sess.state.bPub = bPub

	s.send(raddr, EncodeStep2(Step2{SessionID: req.SessionID, B: srp6a.PadN(bPub)}))
}

func (s *Server) handleStep3(packet []byte, raddr *net.UDPAddr) {
	req, err := DecodeStep3(packet)
	if err != nil {
		return
	}
	// STEP3 removes the entry regardless of outcome, per spec.md §4.2.
	now := s.nowFunc()
	sess, ok := s.table.remove(now, req.SessionID)
	if !ok {
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrNoExist, SessionID: req.SessionID}))
		return
	}
	if sess.state.aPub == nil || sess.state.bPub == nil {
		// STEP3 without a preceding STEP1, per spec.md §5's ordering guarantee.
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrNoExist, SessionID: req.SessionID}))
		return
	}

	u, err := srp6a.ComputeU(sess.state.aPub, sess.state.bPub)
	if err != nil {
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrAuthFailed, SessionID: req.SessionID}))
		return
	}
	_, sessionKey := srp6a.ServerSessionKey(sess.state.aPub, sess.state.userSecrets.verifier, u, sess.state.b)

	expectedM1 := srp6a.ComputeM1(sess.state.userSecrets.username, sess.state.userSecrets.salt, sess.state.aPub, sess.state.bPub, sessionKey)
	if !constantTimeEqual(expectedM1, req.M1) {
		s.send(raddr, EncodeSessionError(SessionError{Code: SessionErrAuthFailed, SessionID: req.SessionID}))
		return
	}

	hamk := srp6a.ComputeHAMK(sess.state.aPub, req.M1, sessionKey)
	s.send(raddr, EncodeStep4(Step4{SessionID: req.SessionID, HAMK: hamk}))
}
