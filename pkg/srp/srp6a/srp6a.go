// Package srp6a implements the pure SRP-6a math of spec.md §4.2: the
// RFC-5054 2048-bit group, and the x/v/B/u/S/K/M1/HAMK derivations, all
// over crypto/sha256 and math/big. No third-party bignum library exists
// anywhere in the retrieval pack, so math/big is the idiomatic stdlib
// choice here rather than a hand-rolled replacement for something the
// corpus already reaches for elsewhere.
package srp6a

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
)

// ErrDegenerateA is returned when the peer's public ephemeral value A is
// zero or a multiple of N, which would let an attacker predict the shared
// secret.
var ErrDegenerateA = errors.New("srp6a: A is degenerate (A==0 or A mod N==0)")

// ErrDegenerateU is returned when the scrambling parameter u hashes to
// zero.
var ErrDegenerateU = errors.New("srp6a: u is degenerate (u==0)")

// N is the RFC-5054 2048-bit safe prime.
var N = mustBig(`
AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED
8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3
661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA7
1D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748
544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE5329
9CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759
B65E372FCD68EF20FA7111F9E4AFF73`)

// g is the generator paired with N.
var g = big.NewInt(2)

func mustBig(hex string) *big.Int {
	n := new(big.Int)
	clean := make([]byte, 0, len(hex))
	for _, c := range []byte(hex) {
		if c == '\n' || c == ' ' {
			continue
		}
		clean = append(clean, c)
	}
	if _, ok := n.SetString(string(clean), 16); !ok {
		panic("srp6a: invalid N constant")
	}
	return n
}

func h(parts ...[]byte) []byte {
	sum := sha256.New()
	for _, p := range parts {
		sum.Write(p)
	}
	return sum.Sum(nil)
}

// hNum hashes parts and returns the digest interpreted as a big-endian
// unsigned integer.
func hNum(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(h(parts...))
}

// byteLen is the fixed padding width used throughout the protocol: the
// byte length of N.
func byteLen() int {
	return (N.BitLen() + 7) / 8
}

// Pad left-pads x's big-endian bytes with zeros to n bytes. Per spec.md
// §4.2, the default n is the byte-length of N.
func Pad(x *big.Int, n int) []byte {
	b := x.Bytes()
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// PadN pads x to the byte-length of N.
func PadN(x *big.Int) []byte { return Pad(x, byteLen()) }

// K is the multiplier parameter k = H(N || PAD(g)).
func K() *big.Int {
	return hNum(PadN(N), PadN(g))
}

// ComputeX derives the private key exponent x = H(salt || H(username ":"
// password)) used by the client to build its verifier.
func ComputeX(salt []byte, username, password string) *big.Int {
	inner := h([]byte(username), []byte(":"), []byte(password))
	return hNum(salt, inner)
}

// ComputeVerifier derives the server-stored verifier v = g^x mod N.
func ComputeVerifier(x *big.Int) *big.Int {
	return new(big.Int).Exp(g, x, N)
}

// ServerEphemeral picks a random 256-bit private exponent b and derives
// the public value B = (k*v + g^b) mod N.
func ServerEphemeral(verifier *big.Int) (b, bPub *big.Int, err error) {
	b, err = randBits(256)
	if err != nil {
		return nil, nil, err
	}
	k := K()
	term1 := new(big.Int).Mul(k, verifier)
	term2 := new(big.Int).Exp(g, b, N)
	bPub = new(big.Int).Add(term1, term2)
	bPub.Mod(bPub, N)
	return b, bPub, nil
}

func randBits(bits int) (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return rand.Int(rand.Reader, max)
}

// ComputeU derives the scrambling parameter u = H(PAD(A) || PAD(B)).
// Returns ErrDegenerateU if u hashes to zero.
func ComputeU(aPub, bPub *big.Int) (*big.Int, error) {
	u := hNum(PadN(aPub), PadN(bPub))
	if u.Sign() == 0 {
		return nil, ErrDegenerateU
	}
	return u, nil
}

// CheckAPublic rejects A==0 and A mod N == 0, per spec.md §4.2.
func CheckAPublic(aPub *big.Int) error {
	if aPub.Sign() == 0 {
		return ErrDegenerateA
	}
	mod := new(big.Int).Mod(aPub, N)
	if mod.Sign() == 0 {
		return ErrDegenerateA
	}
	return nil
}

// ServerSessionKey derives the server's view of the shared secret
// S = (A * v^u)^b mod N and K = H(PAD(S)).
func ServerSessionKey(aPub, verifier, u, b *big.Int) (s, sessionKey *big.Int) {
	vu := new(big.Int).Exp(verifier, u, N)
	avu := new(big.Int).Mul(aPub, vu)
	avu.Mod(avu, N)
	s = new(big.Int).Exp(avu, b, N)
	sessionKey = hNum(PadN(s))
	return s, sessionKey
}

// ClientSessionKey derives the client's view of the shared secret
// S = (B - k*g^x)^(a + u*x) mod N and K = H(PAD(S)). Included for parity
// with the server side and for tests that simulate a full handshake.
func ClientSessionKey(bPub, x, a, u *big.Int) (s, sessionKey *big.Int) {
	k := K()
	gx := new(big.Int).Exp(g, x, N)
	kgx := new(big.Int).Mul(k, gx)
	base := new(big.Int).Sub(bPub, kgx)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)
	s = new(big.Int).Exp(base, exp, N)
	sessionKey = hNum(PadN(s))
	return s, sessionKey
}

// hashNXorG computes H(N) XOR H(PAD(g, |N|)), the first term of M1.
func hashNXorG() []byte {
	hn := h(PadN(N))
	hg := h(PadN(g))
	out := make([]byte, len(hn))
	for i := range hn {
		out[i] = hn[i] ^ hg[i]
	}
	return out
}

// ComputeM1 derives the client evidence message
// M1 = H(H(N) XOR H(PAD(g)) || H(username) || salt || PAD(A) || PAD(B) || K).
// K itself is already the 32-byte digest H(PAD(S)) computed by
// ServerSessionKey/ClientSessionKey; it is folded in raw here, not
// re-padded out to N's byte length.
func ComputeM1(username string, salt []byte, aPub, bPub, sessionKey *big.Int) []byte {
	return h(hashNXorG(), h([]byte(username)), salt, PadN(aPub), PadN(bPub), Pad(sessionKey, sha256.Size))
}

// ComputeHAMK derives the server evidence message HAMK = H(PAD(A) || M1 || K).
func ComputeHAMK(aPub *big.Int, m1 []byte, sessionKey *big.Int) []byte {
	return h(PadN(aPub), m1, Pad(sessionKey, sha256.Size))
}

// ClientPublic derives the client's public ephemeral A = g^a mod N, given
// a random private exponent a. Exposed for tests that simulate the full
// handshake end to end.
func ClientPublic(a *big.Int) *big.Int {
	return new(big.Int).Exp(g, a, N)
}

// RandomPrivate picks a random 256-bit private exponent (client "a" or
// server "b").
func RandomPrivate() (*big.Int, error) {
	return randBits(256)
}
