package srp

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"
)

// SessionTTL is the lifetime of an Auth Session entry per spec.md §3: 30s,
// GC'd opportunistically on incoming packets rather than by a background
// sweep.
const SessionTTL = 30 * time.Second

// ErrSessionNotFound is returned when a session id has no live entry —
// either it never existed, it expired, or (for STEP3) it was already
// consumed by a prior STEP3.
var ErrSessionNotFound = errors.New("srp: session not found")

// srpState mirrors spec.md §3's srp_state shape.
type srpState struct {
	userSecrets userSecrets
	b           *big.Int // server ephemeral private
	aPub        *big.Int // peer public, set at STEP1
	bPub        *big.Int // server public, set at STEP1
}

type userSecrets struct {
	username string
	salt     []byte
	verifier *big.Int
}

type session struct {
	clientSessionID uint32
	createdAt       time.Time
	state           srpState
}

// sessionTable is the mutually-exclusive map keyed by positive i32 that
// spec.md §3/§9 describes: lock scope is the allocation check + insertion
// (or a single lookup/delete) only — no I/O happens while the mutex is
// held, per spec.md §5's suspension-point rule.
type sessionTable struct {
	mu      sync.Mutex
	entries map[int32]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{entries: make(map[int32]*session)}
}

// gcLocked drops expired entries. Caller must hold mu.
func (t *sessionTable) gcLocked(now time.Time) {
	for id, s := range t.entries {
		if now.Sub(s.createdAt) > SessionTTL {
			delete(t.entries, id)
		}
	}
}

// insert allocates a random positive i32 id not currently in use and
// stores s under it, retrying on collision per spec.md §9.
func (t *sessionTable) insert(now time.Time, s *session) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gcLocked(now)

	for attempt := 0; attempt < 64; attempt++ {
		id, err := randomPositiveInt32()
		if err != nil {
			return 0, err
		}
		if _, exists := t.entries[id]; exists {
			continue
		}
		t.entries[id] = s
		return id, nil
	}
	return 0, errors.New("srp: could not allocate a free session id")
}

// lookup returns the session for id, GC'ing expired entries first. It does
// not remove the entry (used by STEP1).
func (t *sessionTable) lookup(now time.Time, id int32) (*session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gcLocked(now)
	s, ok := t.entries[id]
	if !ok || now.Sub(s.createdAt) > SessionTTL {
		return nil, false
	}
	return s, true
}

// remove deletes id unconditionally and returns whatever was stored there,
// used by STEP3 which removes the entry regardless of success per
// spec.md §3.
func (t *sessionTable) remove(now time.Time, id int32) (*session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gcLocked(now)
	s, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return s, ok
}

func randomPositiveInt32() (int32, error) {
	max := big.NewInt(1 << 31)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	v := int32(n.Int64())
	if v <= 0 {
		v = 1
	}
	return v, nil
}
