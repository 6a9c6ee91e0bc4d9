// Package srp implements the bit-exact UDP wire protocol and session table
// of spec.md §4.2: little-endian framing, NUL-terminated strings, and the
// four-step SRP-6a handshake built on pkg/srp/srp6a.
package srp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic numbers, bit-exact with spec.md §4.2.
const (
	MagicNegotiate    uint32 = 0xD003CA01
	MagicNegotiateAck uint32 = 0xD003CA10
	MagicStep1        uint32 = 0xD003CA02
	MagicStep2        uint32 = 0xD003CA20
	MagicStep3        uint32 = 0xD003CA03
	MagicStep4        uint32 = 0xD003CA30
	MagicUserError    uint32 = 0xD003CAFF
	MagicSessionError uint32 = 0xD003CAEE
)

// ProtocolVersion is the only proto byte NEGOTIATE is allowed to carry.
const ProtocolVersion uint8 = 2

// MaxPacketSize bounds any single UDP datagram this protocol will read or
// write.
const MaxPacketSize = 2048

// User-error codes (carried in a UserError packet).
const (
	UserErrTryLater         uint8 = 0
	UserErrNoExist          uint8 = 1
	UserErrOutdatedProtocol uint8 = 2
	UserErrWillNotAuth      uint8 = 3
)

// Session-error codes (carried in a SessionError packet).
const (
	SessionErrNoExist      uint8 = 1
	SessionErrVerifierUnsafe uint8 = 2
	SessionErrAuthFailed   uint8 = 3
)

// ErrShortPacket is returned when a datagram ends before a required field.
var ErrShortPacket = errors.New("srp: packet too short")

// ErrUnknownMagic marks a datagram whose leading u32 did not match any
// known command; per spec.md §4.2 these are silently dropped by the
// caller, not treated as protocol errors.
var ErrUnknownMagic = errors.New("srp: unknown magic")

// PeekMagic reads the leading 4 bytes of buf without consuming it.
func PeekMagic(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, ErrShortPacket
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// reader walks a little-endian buffer, matching the field order of
// spec.md §4.2's wire table.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, ErrShortPacket
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, ErrShortPacket
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, ErrShortPacket
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, ErrShortPacket
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// cstring reads a NUL-terminated UTF-8 string.
func (r *reader) cstring() (string, error) {
	idx := bytes.IndexByte(r.buf[r.pos:], 0)
	if idx < 0 {
		return "", ErrShortPacket
	}
	s := string(r.buf[r.pos : r.pos+idx])
	r.pos += idx + 1
	return s, nil
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) bytes(b []byte) { w.buf.Write(b) }
func (w *writer) cstring(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

// Negotiate is the C→S NEGOTIATE payload.
type Negotiate struct {
	Proto           uint8
	ClientSessionID uint32
	Username        string
}

func DecodeNegotiate(buf []byte) (Negotiate, error) {
	r := newReader(buf[4:])
	var n Negotiate
	var err error
	if n.Proto, err = r.u8(); err != nil {
		return n, err
	}
	if n.ClientSessionID, err = r.u32(); err != nil {
		return n, err
	}
	if n.Username, err = r.cstring(); err != nil {
		return n, err
	}
	return n, nil
}

// NegotiateAck is the S→C NEGOTIATE-ACK payload.
type NegotiateAck struct {
	Proto           uint8
	ClientSessionID uint32
	SessionID       int32
	Salt            []byte
	Username        string
}

func EncodeNegotiateAck(a NegotiateAck) []byte {
	w := &writer{}
	w.u32(MagicNegotiateAck)
	w.u8(a.Proto)
	w.u32(a.ClientSessionID)
	w.i32(a.SessionID)
	w.u8(uint8(len(a.Salt)))
	w.bytes(a.Salt)
	w.cstring(a.Username)
	return w.buf.Bytes()
}

// Step1 is the C→S STEP1 payload (client sends its public ephemeral A).
type Step1 struct {
	SessionID int32
	A         []byte
}

func DecodeStep1(buf []byte) (Step1, error) {
	r := newReader(buf[4:])
	var s Step1
	var err error
	if s.SessionID, err = r.i32(); err != nil {
		return s, err
	}
	lenA, err := r.u16()
	if err != nil {
		return s, err
	}
	if s.A, err = r.bytes(int(lenA)); err != nil {
		return s, err
	}
	return s, nil
}

// Step2 is the S→C STEP2 payload (server sends its public ephemeral B).
type Step2 struct {
	SessionID int32
	B         []byte
}

func EncodeStep2(s Step2) []byte {
	w := &writer{}
	w.u32(MagicStep2)
	w.i32(s.SessionID)
	w.u16(uint16(len(s.B)))
	w.bytes(s.B)
	return w.buf.Bytes()
}

// Step3 is the C→S STEP3 payload (client sends its evidence message M1).
type Step3 struct {
	SessionID int32
	M1        []byte
}

func DecodeStep3(buf []byte) (Step3, error) {
	r := newReader(buf[4:])
	var s Step3
	var err error
	if s.SessionID, err = r.i32(); err != nil {
		return s, err
	}
	lenM1, err := r.u16()
	if err != nil {
		return s, err
	}
	if s.M1, err = r.bytes(int(lenM1)); err != nil {
		return s, err
	}
	return s, nil
}

// Step4 is the S→C STEP4 payload (server sends its evidence message HAMK).
type Step4 struct {
	SessionID int32
	HAMK      []byte
}

func EncodeStep4(s Step4) []byte {
	w := &writer{}
	w.u32(MagicStep4)
	w.i32(s.SessionID)
	w.u16(uint16(len(s.HAMK)))
	w.bytes(s.HAMK)
	return w.buf.Bytes()
}

// UserError is the S→C USER ERROR payload.
type UserError struct {
	Code            uint8
	ClientSessionID uint32
}

func EncodeUserError(e UserError) []byte {
	w := &writer{}
	w.u32(MagicUserError)
	w.u8(e.Code)
	w.u32(e.ClientSessionID)
	return w.buf.Bytes()
}

// SessionError is the S→C SESSION ERROR payload.
type SessionError struct {
	Code      uint8
	SessionID int32
}

func EncodeSessionError(e SessionError) []byte {
	w := &writer{}
	w.u32(MagicSessionError)
	w.u8(e.Code)
	w.i32(e.SessionID)
	return w.buf.Bytes()
}

// DescribeMagic renders a magic number for logs/errors.
func DescribeMagic(magic uint32) string {
	switch magic {
	case MagicNegotiate:
		return "NEGOTIATE"
	case MagicNegotiateAck:
		return "NEGOTIATE-ACK"
	case MagicStep1:
		return "STEP1"
	case MagicStep2:
		return "STEP2"
	case MagicStep3:
		return "STEP3"
	case MagicStep4:
		return "STEP4"
	case MagicUserError:
		return "USER-ERROR"
	case MagicSessionError:
		return "SESSION-ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(0x%08X)", magic)
	}
}
