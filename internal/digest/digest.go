// Package digest provides stable content keys used to look up cached embeddings.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "emb:"

// Text returns a stable key for text embedded by model. The same pair always
// yields the same key; a NUL separator keeps ("ab", "c") and ("a", "bc") apart.
func Text(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return prefix + hex.EncodeToString(h.Sum(nil))
}
