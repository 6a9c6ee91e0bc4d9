package party

import "testing"

func TestKeyLayoutMatchesSpec(t *testing.T) {
	if got := userPartyKey("u1"); got != "user_id:{u1}:party" {
		t.Fatalf("unexpected user party key: %s", got)
	}
	if got := partyInfoKey("p1"); got != "party:{p1}:info" {
		t.Fatalf("unexpected party info key: %s", got)
	}
	if got := partyMembersKey("p1"); got != "party:{p1}:members" {
		t.Fatalf("unexpected party members key: %s", got)
	}
	if got := userInvitesKey("u1"); got != "user_id:{u1}:invites" {
		t.Fatalf("unexpected user invites key: %s", got)
	}
}
