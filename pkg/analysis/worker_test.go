package analysis

import (
	"testing"
	"time"
)

func TestBackoffForIndexesByFailureCount(t *testing.T) {
	if backoffFor(0) != 1*time.Second {
		t.Fatalf("expected 1s for first failure, got %v", backoffFor(0))
	}
	if backoffFor(100) != backoffSchedule[len(backoffSchedule)-1] {
		t.Fatalf("expected schedule to cap at its last entry for large failure counts")
	}
}

func TestSanitizeInputStripsCyclicAndHashFields(t *testing.T) {
	content := map[string]any{
		"wad_id":       "42",
		"analysis":     map[string]any{"back": "ref"},
		"content_hash": "abc123",
		"images":       []string{"a.png"},
		"description":  string(make([]byte, 6000)),
	}
	clean := SanitizeInput(content)
	if _, ok := clean["analysis"]; ok {
		t.Fatalf("expected analysis back-reference stripped")
	}
	if _, ok := clean["content_hash"]; ok {
		t.Fatalf("expected content_hash stripped")
	}
	if _, ok := clean["images"]; ok {
		t.Fatalf("expected images array stripped")
	}
	if _, ok := clean["wad_id"]; !ok {
		t.Fatalf("expected unrelated fields kept")
	}
	desc, ok := clean["description"].(string)
	if !ok {
		t.Fatalf("expected description to remain a string")
	}
	if len(desc) >= 6000 {
		t.Fatalf("expected long embedded text truncated, got length %d", len(desc))
	}
}

func TestMapDedupIDFormat(t *testing.T) {
	if got := MapDedupID("7", "MAP02"); got != "wad-7-map-MAP02" {
		t.Fatalf("unexpected dedup id: %s", got)
	}
}
