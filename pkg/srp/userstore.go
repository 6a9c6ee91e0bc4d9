package srp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"
)

// ErrUserNotFound is returned by UserStore.Lookup when no record exists
// for username.
var ErrUserNotFound = errors.New("srp: user not found")

// User is the spec.md §3 User Record: {username, salt, verifier, disabled}.
// Salt length MUST be ≤ 255 bytes; salt and verifier MUST be nonempty.
type User struct {
	Username string
	Salt     []byte
	Verifier *big.Int
	Disabled bool
}

// UserStore resolves usernames to verifier records for the NEGOTIATE step.
type UserStore interface {
	Lookup(ctx context.Context, username string) (*User, error)
}

// legacyUserBlob is the single-blob JSON shape spec.md §3 says the store
// must also accept at the same key, predating the hash-field layout.
type legacyUserBlob struct {
	Username string `json:"username"`
	Salt     string `json:"salt"`     // hex, matches the hash-field encoding
	Verifier string `json:"verifier"` // decimal big.Int string
	Disabled bool   `json:"disabled"`
}

// RedisUserStore looks users up by a username-keyed hash in the KV store,
// falling back to a legacy single-blob JSON value at the same key, per
// spec.md §3.
type RedisUserStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisUserStore(rdb *redis.Client) *RedisUserStore {
	return &RedisUserStore{rdb: rdb, prefix: "user:"}
}

func (s *RedisUserStore) key(username string) string {
	return s.prefix + username
}

func (s *RedisUserStore) Lookup(ctx context.Context, username string) (*User, error) {
	key := s.key(username)

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading user hash %s: %w", key, err)
	}
	if len(fields) > 0 {
		return userFromHash(username, fields)
	}

	// Fall back to the legacy single-blob shape at the same key.
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading legacy user blob %s: %w", key, err)
	}
	var blob legacyUserBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, fmt.Errorf("decoding legacy user blob %s: %w", key, err)
	}
	return userFromLegacyBlob(username, blob)
}

func userFromHash(username string, fields map[string]string) (*User, error) {
	salt, err := decodeHexOrRaw(fields["salt"])
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	verifier, ok := new(big.Int).SetString(fields["verifier"], 16)
	if !ok {
		return nil, fmt.Errorf("decoding verifier for %s: not valid hex", username)
	}
	if len(salt) == 0 || len(salt) > 255 || verifier.Sign() == 0 {
		return nil, fmt.Errorf("user record for %s fails nonempty/length invariants", username)
	}
	return &User{
		Username: username,
		Salt:     salt,
		Verifier: verifier,
		Disabled: fields["disabled"] == "1" || fields["disabled"] == "true",
	}, nil
}

func userFromLegacyBlob(username string, blob legacyUserBlob) (*User, error) {
	salt, err := decodeHexOrRaw(blob.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding legacy salt: %w", err)
	}
	verifier, ok := new(big.Int).SetString(blob.Verifier, 10)
	if !ok {
		return nil, fmt.Errorf("decoding legacy verifier for %s: not valid decimal", username)
	}
	if len(salt) == 0 || len(salt) > 255 || verifier.Sign() == 0 {
		return nil, fmt.Errorf("legacy user record for %s fails nonempty/length invariants", username)
	}
	return &User{
		Username: blob.Username,
		Salt:     salt,
		Verifier: verifier,
		Disabled: blob.Disabled,
	}, nil
}

func decodeHexOrRaw(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty")
	}
	return hex.DecodeString(s)
}
