package srp

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/srp/srp6a"
)

type fakeUserStore struct {
	users map[string]*User
}

func (f *fakeUserStore) Lookup(_ context.Context, username string) (*User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// TestHappyPathHandshake simulates scenario S1 of spec.md §8: NEGOTIATE,
// STEP1/STEP2, STEP3/STEP4, and a replayed STEP3 rejected as
// SESSION_NO_EXIST.
func TestHappyPathHandshake(t *testing.T) {
	salt := []byte{0x01, 0x02, 0x03, 0x04}
	username := "alice"
	password := "hunter2"
	x := srp6a.ComputeX(salt, username, password)
	verifier := srp6a.ComputeVerifier(x)

	store := &fakeUserStore{users: map[string]*User{
		username: {Username: username, Salt: salt, Verifier: verifier},
	}}

	srv, err := NewServer("127.0.0.1:0", store, zap.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client, err := net.DialUDP("udp", nil, srv.conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	client.SetDeadline(time.Now().Add(2 * time.Second))

	// NEGOTIATE
	w := &writer{}
	w.u32(MagicNegotiate)
	w.u8(ProtocolVersion)
	w.u32(0x11223344)
	w.cstring(username)
	if _, err := client.Write(w.buf.Bytes()); err != nil {
		t.Fatalf("write negotiate: %v", err)
	}

	ackBuf := make([]byte, MaxPacketSize)
	n, err := client.Read(ackBuf)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	magic, _ := PeekMagic(ackBuf[:n])
	if magic != MagicNegotiateAck {
		t.Fatalf("expected NEGOTIATE-ACK, got %s", DescribeMagic(magic))
	}
	sessionID := int32(binary.LittleEndian.Uint32(ackBuf[9:13]))

	// STEP1
	a, err := srp6a.RandomPrivate()
	if err != nil {
		t.Fatalf("random private: %v", err)
	}
	aPub := srp6a.ClientPublic(a)
	aBytes := srp6a.PadN(aPub)

	w = &writer{}
	w.u32(MagicStep1)
	w.i32(sessionID)
	w.u16(uint16(len(aBytes)))
	w.bytes(aBytes)
	if _, err := client.Write(w.buf.Bytes()); err != nil {
		t.Fatalf("write step1: %v", err)
	}

	step2Buf := make([]byte, MaxPacketSize)
	n, err = client.Read(step2Buf)
	if err != nil {
		t.Fatalf("read step2: %v", err)
	}
	step2, err := decodeStep2(step2Buf[:n])
	if err != nil {
		t.Fatalf("decode step2: %v", err)
	}
	bPub := bytesToBig(step2.B)

	u, err := srp6a.ComputeU(aPub, bPub)
	if err != nil {
		t.Fatalf("compute u: %v", err)
	}
	_, clientKey := srp6a.ClientSessionKey(bPub, x, a, u)
	m1 := srp6a.ComputeM1(username, salt, aPub, bPub, clientKey)

	// STEP3
	w = &writer{}
	w.u32(MagicStep3)
	w.i32(sessionID)
	w.u16(uint16(len(m1)))
	w.bytes(m1)
	if _, err := client.Write(w.buf.Bytes()); err != nil {
		t.Fatalf("write step3: %v", err)
	}

	step4Buf := make([]byte, MaxPacketSize)
	n, err = client.Read(step4Buf)
	if err != nil {
		t.Fatalf("read step4: %v", err)
	}
	magic, _ = PeekMagic(step4Buf[:n])
	if magic != MagicStep4 {
		t.Fatalf("expected STEP4, got %s", DescribeMagic(magic))
	}
	step4, err := decodeStep4(step4Buf[:n])
	if err != nil {
		t.Fatalf("decode step4: %v", err)
	}
	if len(step4.HAMK) != 32 {
		t.Fatalf("expected 32-byte HAMK, got %d", len(step4.HAMK))
	}

	// Replay STEP3 with the same session id: must be SESSION_NO_EXIST.
	if _, err := client.Write(w.buf.Bytes()); err != nil {
		t.Fatalf("write replayed step3: %v", err)
	}
	errBuf := make([]byte, MaxPacketSize)
	n, err = client.Read(errBuf)
	if err != nil {
		t.Fatalf("read replay response: %v", err)
	}
	magic, _ = PeekMagic(errBuf[:n])
	if magic != MagicSessionError {
		t.Fatalf("expected SESSION-ERROR, got %s", DescribeMagic(magic))
	}
	if errBuf[4] != SessionErrNoExist {
		t.Fatalf("expected SESSION_NO_EXIST code, got %d", errBuf[4])
	}
}

func decodeStep2(buf []byte) (Step2, error) {
	r := newReader(buf[4:])
	var s Step2
	var err error
	if s.SessionID, err = r.i32(); err != nil {
		return s, err
	}
	lenB, err := r.u16()
	if err != nil {
		return s, err
	}
	if s.B, err = r.bytes(int(lenB)); err != nil {
		return s, err
	}
	return s, nil
}

func decodeStep4(buf []byte) (Step4, error) {
	r := newReader(buf[4:])
	var s Step4
	var err error
	if s.SessionID, err = r.i32(); err != nil {
		return s, err
	}
	lenH, err := r.u16()
	if err != nil {
		return s, err
	}
	if s.HAMK, err = r.bytes(int(lenH)); err != nil {
		return s, err
	}
	return s, nil
}
