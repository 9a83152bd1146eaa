// internal/content/fingerprint.go
package content

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the deterministic hash tying a campaign to its
// submitted content. Fields are separated by NUL so (text, media) pairs
// cannot collide by concatenation; nothing time-dependent is mixed in.
func Fingerprint(p Post) string {
	h := sha256.New()
	h.Write([]byte(p.Text))
	h.Write([]byte{0})
	h.Write([]byte(p.MediaRef))
	h.Write([]byte{0})
	h.Write([]byte(p.ContentType))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether a candidate post reproduces the stored hash.
func Verify(p Post, expectedHash string) bool {
	return Fingerprint(p) == expectedHash
}
