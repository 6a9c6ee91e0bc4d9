package errkind

import (
	"errors"
	"testing"
)

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	cases := []error{
		Transientf("op", cause),
		Poisonedf("op", cause),
		PolicyDeniedf("op", cause),
		ResourceFailuref("op", cause),
		AuthFailuref("op", cause),
	}
	for _, err := range cases {
		if !errors.Is(err, cause) {
			t.Fatalf("%v: expected errors.Is to find cause", err)
		}
	}
}
