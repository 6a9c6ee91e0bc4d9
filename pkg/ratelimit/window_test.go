package ratelimit

import (
	"testing"
	"time"
)

// slidingWindow is a pure-Go reimplementation of checkScript's algorithm,
// used only to validate the prepend-trim-scan contract without requiring a
// live Redis server in unit tests (no miniredis dependency exists anywhere
// in the retrieval pack).
type slidingWindow struct {
	entries map[string]int64 // member -> timestamp_ms
	limits  Limits
}

func newSlidingWindow(limits Limits) *slidingWindow {
	return &slidingWindow{entries: map[string]int64{}, limits: limits}
}

// allow mirrors checkScript: the attempt is recorded unconditionally
// before the stale/overflow trim and the allow/deny count, so a denied
// attempt still consumes long-window quota.
func (w *slidingWindow) allow(nowMs int64, member string) bool {
	w.entries[member] = nowMs

	for m, ts := range w.entries {
		if ts < nowMs-w.limits.LongWindow.Milliseconds() {
			delete(w.entries, m)
		}
	}
	if max := w.limits.MaxListSize; max > 0 && len(w.entries) > max {
		w.trimToNewest(max)
	}

	var shortCount, longCount int
	for _, ts := range w.entries {
		longCount++
		if ts >= nowMs-w.limits.ShortWindow.Milliseconds() {
			shortCount++
		}
	}
	return shortCount <= w.limits.Short && longCount <= w.limits.Long
}

// trimToNewest keeps only the max most-recent entries, matching
// checkScript's ZREMRANGEBYRANK size cap.
func (w *slidingWindow) trimToNewest(max int) {
	type entry struct {
		member string
		ts     int64
	}
	entries := make([]entry, 0, len(w.entries))
	for m, ts := range w.entries {
		entries = append(entries, entry{m, ts})
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].ts > entries[i].ts {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	for _, e := range entries[max:] {
		delete(w.entries, e.member)
	}
}

func TestSlidingWindowDeniesAtShortBurstLimit(t *testing.T) {
	w := newSlidingWindow(Limits{Short: 2, ShortWindow: 1000 * time.Millisecond, Long: 100, LongWindow: 60000 * time.Millisecond})
	if !w.allow(0, "a") {
		t.Fatalf("expected first request allowed")
	}
	if !w.allow(100, "b") {
		t.Fatalf("expected second request allowed")
	}
	if w.allow(200, "c") {
		t.Fatalf("expected third request within short window to be denied")
	}
}

func TestSlidingWindowDeniesAtLongSustainedLimit(t *testing.T) {
	w := newSlidingWindow(Limits{Short: 1000, ShortWindow: 1000 * time.Millisecond, Long: 2, LongWindow: 60000 * time.Millisecond})
	if !w.allow(0, "a") {
		t.Fatalf("expected first request allowed")
	}
	if !w.allow(30000, "b") {
		t.Fatalf("expected second request allowed")
	}
	if w.allow(45000, "c") {
		t.Fatalf("expected third request within long window to be denied")
	}
}

func TestSlidingWindowExpiresOldEntries(t *testing.T) {
	w := newSlidingWindow(Limits{Short: 1, ShortWindow: 1000 * time.Millisecond, Long: 1, LongWindow: 5000 * time.Millisecond})
	if !w.allow(0, "a") {
		t.Fatalf("expected first request allowed")
	}
	if w.allow(500, "b") {
		t.Fatalf("expected second request within both windows to be denied")
	}
	if !w.allow(6000, "c") {
		t.Fatalf("expected request after long window to be allowed")
	}
}
