// Package wsgateway implements the per-connection WebSocket fan-in/out
// session of spec.md §4.5: a two-phase AES-GCM handshake, JWKS-validated
// access tokens, and a fan-out proxy task gated by the self-transient
// rule. Grounded on codewire's gorilla/websocket upgrade idiom for the
// connection lifecycle.
package wsgateway

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HandshakeTTL bounds how long an auth-phase entry may sit unclaimed in
// the KV store before the WS upgrade must have happened, per spec.md §5.
const HandshakeTTL = 10 * time.Second

// handshakeGetDel atomically reads and deletes the single-use handshake
// blob, per spec.md §4.5 — "Atomically GETs and DELs the handshake entry
// (single-shot) via a server-side script."
var handshakeGetDel = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v then
	redis.call("DEL", KEYS[1])
end
return v
`)

// ErrHandshakeNotFound covers both an unknown conn_id and a replayed
// handshake (scenario S5 of spec.md §8): the single-use entry is already
// gone.
var ErrHandshakeNotFound = errors.New("wsgateway: handshake not found or already consumed")

// handshakeBlob is the value stored at wsa:<conn_id>, per spec.md §6.
type handshakeBlob struct {
	UserID   string `json:"user_id"`
	Key      []byte `json:"key"`  // AES-256-GCM key, 32 bytes
	Nonce    []byte `json:"nonce"` // 12 bytes
	DeviceID string `json:"device_id"`
}

// HandshakeStore manages the KV-resident, single-use handshake scratch.
type HandshakeStore struct {
	rdb *redis.Client
}

func NewHandshakeStore(rdb *redis.Client) *HandshakeStore {
	return &HandshakeStore{rdb: rdb}
}

// BeginRequest is the body POST /ws/auth accepts, per spec.md §6.
type BeginRequest struct {
	Key      string `json:"key"`   // base64
	Nonce    string `json:"nonce"` // base64
	DeviceID string `json:"device_id"`
}

// Begin stores the handshake blob keyed by a newly generated conn_id and
// returns that conn_id, per spec.md §4.5 step 1.
func (s *HandshakeStore) Begin(ctx context.Context, userID string, req BeginRequest) (connID string, err error) {
	key, err := base64.StdEncoding.DecodeString(req.Key)
	if err != nil || len(key) != 32 {
		return "", fmt.Errorf("invalid handshake key: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(req.Nonce)
	if err != nil || len(nonce) != 12 {
		return "", fmt.Errorf("invalid handshake nonce: %w", err)
	}

	connID = uuid.NewString()
	blob := handshakeBlob{UserID: userID, Key: key, Nonce: nonce, DeviceID: req.DeviceID}
	raw, err := json.Marshal(blob)
	if err != nil {
		return "", fmt.Errorf("encoding handshake blob: %w", err)
	}

	if err := s.rdb.Set(ctx, handshakeKey(connID), raw, HandshakeTTL).Err(); err != nil {
		return "", fmt.Errorf("storing handshake blob: %w", err)
	}
	return connID, nil
}

// Consume atomically retrieves and deletes the handshake blob for
// connID, decrypts ciphertext with AES-256-GCM, and returns the
// plaintext access token. AES-GCM is a deliberate stdlib choice: no
// third-party AEAD library appears anywhere in the retrieval pack, and
// crypto/cipher's GCM mode is the idiomatic way to express this in Go.
func (s *HandshakeStore) Consume(ctx context.Context, connID, ciphertextB64 string) (userID, accessToken string, err error) {
	raw, err := handshakeGetDel.Run(ctx, s.rdb, []string{handshakeKey(connID)}).Text()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrHandshakeNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("reading handshake blob: %w", err)
	}

	var blob handshakeBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return "", "", fmt.Errorf("decoding handshake blob: %w", err)
	}

	ciphertext, err := base64.URLEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(blob.Key)
	if err != nil {
		return "", "", fmt.Errorf("constructing AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", fmt.Errorf("constructing GCM mode: %w", err)
	}
	plaintext, err := gcm.Open(nil, blob.Nonce, ciphertext, nil)
	if err != nil {
		return "", "", fmt.Errorf("decrypting handshake ciphertext: %w", err)
	}

	return blob.UserID, string(plaintext), nil
}

func handshakeKey(connID string) string {
	return "wsa:" + connID
}
