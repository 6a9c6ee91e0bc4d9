// Package party implements the KV-backed party state of spec.md §3/§6:
// a members set and an info hash per party, both TTL'd to 7 days and
// refreshed on touch, with join-new/leave-old handled as one atomic
// script so a user is never a member of two parties at once. Grounded on
// wisbric-nightowl's dedup.go key-prefix/TTL conventions, generalized
// from a simple GET/SET into a multi-key Lua transition because joining
// a party must atomically leave the old one.
package party

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is the 7-day lifetime spec.md §3 assigns to party membership and
// info keys, refreshed on every touch.
const TTL = 7 * 24 * time.Hour

// joinScript atomically removes the caller from their previous party (if
// any) and adds them to the new one, refreshing both keys' TTLs.
// KEYS[1] = user_id:{<u>}:party. ARGV: new_party_id, ttl_seconds, user_id.
var joinScript = redis.NewScript(`
local old = redis.call("GET", KEYS[1])
local new_party = ARGV[1]
local ttl = ARGV[2]
local user_id = ARGV[3]

if old and old ~= new_party then
	redis.call("SREM", "party:{" .. old .. "}:members", user_id)
end

redis.call("SADD", "party:{" .. new_party .. "}:members", user_id)
redis.call("EXPIRE", "party:{" .. new_party .. "}:members", ttl)
redis.call("SET", KEYS[1], new_party, "EX", ttl)

return old or false
`)

// Info is the spec.md §3 Party record's non-membership fields.
type Info struct {
	ID       string
	LeaderID string
	Name     string
}

// Store manages party membership and info in the KV store.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func userPartyKey(userID string) string   { return fmt.Sprintf("user_id:{%s}:party", userID) }
func partyInfoKey(partyID string) string   { return fmt.Sprintf("party:{%s}:info", partyID) }
func partyMembersKey(partyID string) string { return fmt.Sprintf("party:{%s}:members", partyID) }
func userInvitesKey(userID string) string  { return fmt.Sprintf("user_id:{%s}:invites", userID) }

// Join atomically moves userID into partyID, leaving any previous party.
// Returns the previous party id, or "" if the user had none.
func (s *Store) Join(ctx context.Context, userID, partyID string) (previousPartyID string, err error) {
	res, err := joinScript.Run(ctx, s.rdb, []string{userPartyKey(userID)},
		partyID, int64(TTL.Seconds()), userID,
	).Result()
	if err != nil {
		return "", fmt.Errorf("joining party %s: %w", partyID, err)
	}
	if res == false || res == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", res), nil
}

// Leave removes userID from its current party, if any.
func (s *Store) Leave(ctx context.Context, userID string) error {
	current, err := s.rdb.Get(ctx, userPartyKey(userID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading current party for %s: %w", userID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, partyMembersKey(current), userID)
	pipe.Del(ctx, userPartyKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaving party %s: %w", current, err)
	}
	return nil
}

// CurrentParty returns the party id userID currently belongs to, if any.
func (s *Store) CurrentParty(ctx context.Context, userID string) (string, bool, error) {
	partyID, err := s.rdb.Get(ctx, userPartyKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading current party for %s: %w", userID, err)
	}
	return partyID, true, nil
}

// SetInfo writes (and refreshes the TTL of) a party's info hash.
func (s *Store) SetInfo(ctx context.Context, info Info) error {
	key := partyInfoKey(info.ID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"leader_id": info.LeaderID,
		"name":      info.Name,
	})
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("setting party info %s: %w", info.ID, err)
	}
	return nil
}

// Members returns the current member set for partyID and refreshes its
// TTL (read-touch), per spec.md §5's "refreshed on touch" rule.
func (s *Store) Members(ctx context.Context, partyID string) ([]string, error) {
	key := partyMembersKey(partyID)
	members, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading members of %s: %w", partyID, err)
	}
	s.rdb.Expire(ctx, key, TTL)
	return members, nil
}

// Invite records a pending invite to partyID, sent by senderID, in the
// invitee's invite hash (party_id -> sender).
func (s *Store) Invite(ctx context.Context, inviteeID, partyID, senderID string) error {
	key := userInvitesKey(inviteeID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, partyID, senderID)
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("recording invite for %s: %w", inviteeID, err)
	}
	return nil
}
