// Package checksum computes and verifies content digests used to detect
// corruption of persisted state.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify reports whether sum is the SHA-256 digest of data. Comparison is
// constant-time and tolerates uppercase hex.
func Verify(data []byte, sum string) bool {
	want, err := hex.DecodeString(strings.ToLower(sum))
	if err != nil || len(want) != sha256.Size {
		return false
	}
	got := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}
