package srp6a

import (
	"bytes"
	"math/big"
	"testing"
)

// TestHandshakeRoundTrip simulates the full client/server exchange of
// spec.md §4.2 and checks invariant 2 of §8: the client and server derive
// the same M1, and the server's HAMK verifies against the client's K.
func TestHandshakeRoundTrip(t *testing.T) {
	username := "alice"
	password := "hunter2"
	salt := []byte{0x01, 0x02, 0x03, 0x04}

	x := ComputeX(salt, username, password)
	verifier := ComputeVerifier(x)

	a, err := RandomPrivate()
	if err != nil {
		t.Fatalf("client private: %v", err)
	}
	aPub := ClientPublic(a)

	b, bPub, err := ServerEphemeral(verifier)
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}

	if err := CheckAPublic(aPub); err != nil {
		t.Fatalf("unexpected degenerate A: %v", err)
	}

	u, err := ComputeU(aPub, bPub)
	if err != nil {
		t.Fatalf("computing u: %v", err)
	}

	_, serverK := ServerSessionKey(aPub, verifier, u, b)
	_, clientK := ClientSessionKey(bPub, x, a, u)

	if serverK.Cmp(clientK) != 0 {
		t.Fatalf("session keys diverge:\nserver=%x\nclient=%x", serverK, clientK)
	}

	clientM1 := ComputeM1(username, salt, aPub, bPub, clientK)
	serverM1 := ComputeM1(username, salt, aPub, bPub, serverK)
	if !bytes.Equal(clientM1, serverM1) {
		t.Fatalf("M1 mismatch: client=%x server=%x", clientM1, serverM1)
	}

	serverHAMK := ComputeHAMK(aPub, serverM1, serverK)
	clientHAMK := ComputeHAMK(aPub, clientM1, clientK)
	if !bytes.Equal(serverHAMK, clientHAMK) {
		t.Fatalf("HAMK mismatch: client=%x server=%x", clientHAMK, serverHAMK)
	}
}

func TestCheckAPublicRejectsZero(t *testing.T) {
	if err := CheckAPublic(big.NewInt(0)); err != ErrDegenerateA {
		t.Fatalf("expected ErrDegenerateA for zero A, got %v", err)
	}
}

func TestCheckAPublicRejectsMultipleOfN(t *testing.T) {
	multiple := new(big.Int).Mul(N, big.NewInt(2))
	if err := CheckAPublic(multiple); err != ErrDegenerateA {
		t.Fatalf("expected ErrDegenerateA for A==2N, got %v", err)
	}
}

func TestPadLeftPadsWithZeros(t *testing.T) {
	x := big.NewInt(5)
	padded := Pad(x, 4)
	if len(padded) != 4 {
		t.Fatalf("expected length 4, got %d", len(padded))
	}
	if padded[3] != 5 || padded[0] != 0 {
		t.Fatalf("expected zero-padded big-endian 5, got %v", padded)
	}
}
