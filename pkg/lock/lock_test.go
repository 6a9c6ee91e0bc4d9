package lock

import "testing"

func TestHandleCarriesKeyAndToken(t *testing.T) {
	h := &Handle{key: "dorch:lock:unit-1", token: "tok"}
	if h.key == "" || h.token == "" {
		t.Fatalf("expected non-empty key/token")
	}
}
