package srp

import "testing"

func TestDecodeNegotiateRoundTrip(t *testing.T) {
	w := &writer{}
	w.u32(MagicNegotiate)
	w.u8(ProtocolVersion)
	w.u32(0x11223344)
	w.cstring("alice")

	got, err := DecodeNegotiate(w.buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Proto != ProtocolVersion || got.ClientSessionID != 0x11223344 || got.Username != "alice" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestEncodeNegotiateAckThenDecodeStep1(t *testing.T) {
	ack := EncodeNegotiateAck(NegotiateAck{
		Proto:           ProtocolVersion,
		ClientSessionID: 7,
		SessionID:       42,
		Salt:            []byte{0x01, 0x02, 0x03, 0x04},
		Username:        "alice",
	})
	magic, err := PeekMagic(ack)
	if err != nil || magic != MagicNegotiateAck {
		t.Fatalf("expected NEGOTIATE-ACK magic, got %v err=%v", magic, err)
	}

	w := &writer{}
	w.u32(MagicStep1)
	w.i32(42)
	a := []byte{0xAA, 0xBB, 0xCC}
	w.u16(uint16(len(a)))
	w.bytes(a)

	step1, err := DecodeStep1(w.buf.Bytes())
	if err != nil {
		t.Fatalf("decode step1: %v", err)
	}
	if step1.SessionID != 42 || string(step1.A) != string(a) {
		t.Fatalf("unexpected step1: %+v", step1)
	}
}

func TestPeekMagicRejectsShortPacket(t *testing.T) {
	if _, err := PeekMagic([]byte{0x01}); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestDescribeMagicUnknown(t *testing.T) {
	if got := DescribeMagic(0xDEADBEEF); got == "" {
		t.Fatalf("expected non-empty description")
	}
}
