package analysis

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder counts tokens the way the target model does. Satisfied by
// *tiktoken.Tiktoken.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// NewEncoder returns the cl100k_base encoder tiktoken-go ships, matching
// the tokenizer used by the chat-completion models this pipeline calls.
func NewEncoder() (Encoder, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding: %w", err)
	}
	return enc, nil
}

func tokenCount(enc Encoder, s string) int {
	return len(enc.Encode(s, nil, nil))
}

// Truncate implements the exact truncation contract of spec.md §4.4 /
// invariant 1 / scenario S6: binary-search over byte indices, rounding
// each midpoint down to the nearest valid UTF-8 boundary, keeping the
// largest prefix whose token count is ≤ budget.
func Truncate(enc Encoder, text string, budget int) string {
	if tokenCount(enc, text) <= budget {
		return text
	}

	lo, hi := 0, len(text)
	best := ""
	for lo <= hi {
		mid := (lo + hi) / 2
		boundary := floorUTF8Boundary(text, mid)
		prefix := text[:boundary]
		if tokenCount(enc, prefix) <= budget {
			best = prefix
			lo = mid + 1
		} else {
			hi = boundary - 1
		}
	}
	return best
}

// floorUTF8Boundary rounds i down to the start of the nearest complete
// UTF-8 rune, so the returned prefix never splits a codepoint.
func floorUTF8Boundary(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// TruncateEmbeddedText implements the input-hygiene rule of spec.md
// §4.4: embedded text files are truncated at a 5000-character boundary
// (character-accurate), with a literal truncation note appended that
// records the original byte length.
func TruncateEmbeddedText(s string) string {
	const limit = 5000
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	truncated := string(runes[:limit])
	return fmt.Sprintf("%s\n[truncated: original length %d bytes]", truncated, len(s))
}
