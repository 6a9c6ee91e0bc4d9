package wsgateway

import "testing"

func TestShouldSuppressSelfTransientDefaultsToSuppressed(t *testing.T) {
	s := &Session{UserID: "11111111-1111-1111-1111-111111111111"}

	payload := make([]byte, 0, 33)
	payload = append(payload, EnvelopeTyping)
	payload = append(payload, partyUUIDBytes("22222222-2222-2222-2222-222222222222")...)
	payload = append(payload, userUUIDBytes(s.UserID)...)

	if !s.shouldSuppressSelfTransient(payload) {
		t.Fatalf("expected self-sent typing to be suppressed by default")
	}
}

func TestShouldSuppressSelfTransientHonorsOptIn(t *testing.T) {
	s := &Session{UserID: "11111111-1111-1111-1111-111111111111"}
	s.enableSelf = true

	payload := make([]byte, 0, 33)
	payload = append(payload, EnvelopeTyping)
	payload = append(payload, partyUUIDBytes("22222222-2222-2222-2222-222222222222")...)
	payload = append(payload, userUUIDBytes(s.UserID)...)

	if s.shouldSuppressSelfTransient(payload) {
		t.Fatalf("expected self-sent typing to pass through once enabled")
	}
}

func TestShouldSuppressSelfTransientIgnoresOtherSenders(t *testing.T) {
	s := &Session{UserID: "11111111-1111-1111-1111-111111111111"}

	payload := make([]byte, 0, 33)
	payload = append(payload, EnvelopeTyping)
	payload = append(payload, partyUUIDBytes("22222222-2222-2222-2222-222222222222")...)
	payload = append(payload, userUUIDBytes("33333333-3333-3333-3333-333333333333")...)

	if s.shouldSuppressSelfTransient(payload) {
		t.Fatalf("expected other users' typing to pass through")
	}
}

func TestShouldSuppressSelfTransientIgnoresNonTypingEnvelopes(t *testing.T) {
	s := &Session{UserID: "11111111-1111-1111-1111-111111111111"}

	payload := make([]byte, 0, 33)
	payload = append(payload, EnvelopeMessage)
	payload = append(payload, partyUUIDBytes("22222222-2222-2222-2222-222222222222")...)
	payload = append(payload, userUUIDBytes(s.UserID)...)
	payload = append(payload, []byte("hi")...)

	if s.shouldSuppressSelfTransient(payload) {
		t.Fatalf("expected non-typing envelopes to never be suppressed")
	}
}
