package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// contextExcerptLen caps how much of the context participates in the key.
const contextExcerptLen = 256

// Fingerprint computes a deterministic cache key over the normalized query
// and an optional short context excerpt. Case and whitespace differences do
// not change the key, so semantically identical queries collide.
func Fingerprint(query, contextText string) string {
	h := sha256.New()
	h.Write([]byte(normalize(query)))
	if contextText != "" {
		excerpt := normalize(contextText)
		if len(excerpt) > contextExcerptLen {
			excerpt = excerpt[:contextExcerptLen]
		}
		h.Write([]byte{0})
		h.Write([]byte(excerpt))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalize case-folds and collapses all runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
