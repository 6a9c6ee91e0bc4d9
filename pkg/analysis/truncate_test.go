package analysis

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// fakeEncoder counts one "token" per byte, giving deterministic,
// dependency-free token counts for exercising the truncation algorithm
// without needing tiktoken-go's real BPE tables in a unit test.
type fakeEncoder struct{}

func (fakeEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len(text))
}

func TestTruncateReturnsUnchangedWhenWithinBudget(t *testing.T) {
	enc := fakeEncoder{}
	text := "hello world"
	got := Truncate(enc, text, 1000)
	if got != text {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestTruncateReturnsValidUTF8PrefixUnderBudget(t *testing.T) {
	enc := fakeEncoder{}
	var b strings.Builder
	b.WriteString(strings.Repeat("a", 87000))
	b.WriteRune('\U0001F600') // 4-byte emoji at byte offset 87000
	b.WriteString(strings.Repeat("b", 100000-87000-4))
	text := b.String()
	if len(text) != 100000 {
		t.Fatalf("test setup: expected 100000 bytes, got %d", len(text))
	}

	budget := 86998
	got := Truncate(enc, text, budget)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated result is not valid UTF-8")
	}
	if len(got) > budget {
		t.Fatalf("truncated result exceeds budget: len=%d budget=%d", len(got), budget)
	}
	if !strings.HasPrefix(text, got) {
		t.Fatalf("truncated result is not a prefix of the original text")
	}
	// The cut must land before the emoji, not mid-codepoint: since the
	// emoji starts at byte 87000 and the budget is 86998, the largest
	// valid UTF-8 boundary at or below the budget is 86998 itself (well
	// within the all-'a' run).
	if len(got) != 86998 {
		t.Fatalf("expected prefix length 86998, got %d", len(got))
	}
}

func TestTruncateEmbeddedTextAppendsNote(t *testing.T) {
	long := strings.Repeat("x", 6000)
	got := TruncateEmbeddedText(long)
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation note, got suffix %q", got[len(got)-40:])
	}
	if !strings.Contains(got, "6000") {
		t.Fatalf("expected original length recorded, got %q", got[len(got)-60:])
	}
}

func TestTruncateEmbeddedTextLeavesShortInputAlone(t *testing.T) {
	short := "short text"
	if got := TruncateEmbeddedText(short); got != short {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}
