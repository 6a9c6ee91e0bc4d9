package wsgateway

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// partyUUIDBytes and userUUIDBytes render an id as the 16-byte value the
// outbound binary envelope embeds, per spec.md §4.5. IDs are expected to
// be UUID strings; a non-UUID id (e.g. in tests) is folded to 16 bytes
// deterministically so the envelope layout still holds.
func partyUUIDBytes(id string) []byte { return idBytes(id) }
func userUUIDBytes(id string) []byte  { return idBytes(id) }

func idBytes(id string) []byte {
	if parsed, err := uuid.Parse(id); err == nil {
		b := parsed
		return b[:]
	}
	sum := md5.Sum([]byte(id))
	return sum[:]
}

func equalUUIDBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
