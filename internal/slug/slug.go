// Package slug turns free text into URL-safe identifiers.
//
// Make is deterministic: "Café Crème!" → "cafe-creme". Unique appends a short
// random suffix so two tasks with the same title still get distinct slugs:
// "Buy milk" → "buy-milk-3k9x0q2a".
//
// The suffix comes from go-nanoid with a lowercase alphanumeric alphabet.
// 36^8 ≈ 2.8e12 combinations per base slug makes a collision rare enough that
// callers treat it as an ordinary unique-constraint failure instead of retrying.
package slug

import (
	"fmt"
	"strings"
	"unicode"

	gonanoid "github.com/jaevor/go-nanoid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// SuffixLength is the number of random characters appended by Unique.
	SuffixLength = 8

	// MaxBaseLength caps the title-derived part so slug + "-" + suffix fits the
	// column comfortably.
	MaxBaseLength = 200

	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var newSuffix = mustGenerator()

func mustGenerator() func() string {
	gen, err := gonanoid.CustomASCII(suffixAlphabet, SuffixLength)
	if err != nil {
		panic(fmt.Sprintf("slug: building suffix generator: %v", err))
	}
	return gen
}

// Make lower-cases s, strips diacritics and collapses every run of characters
// outside [a-z0-9] into a single "-". Leading and trailing separators are
// dropped, so the result may be empty for input like "!!!".
func Make(s string) string {
	// NFD splits "é" into "e" + combining accent; runes.Remove drops the accent.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := b.String()
	if len(out) > MaxBaseLength {
		out = strings.TrimRight(out[:MaxBaseLength], "-")
	}
	return out
}

// Unique returns Make(s) followed by "-" and a random suffix. When the base is
// empty the suffix alone is returned.
func Unique(s string) (string, error) {
	suffix := newSuffix()
	if len(suffix) != SuffixLength {
		return "", fmt.Errorf("slug: generated suffix %q has length %d", suffix, len(suffix))
	}
	base := Make(s)
	if base == "" {
		return suffix, nil
	}
	return base + "-" + suffix, nil
}
