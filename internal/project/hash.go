package project

import (
	"crypto/sha256"
)

// Digest is a SHA-256 content hash.
type Digest [32]byte

// HashBytes returns the digest of data.
func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// Combine hashes content followed by parts, in order. Callers keep the order
// of parts stable.
func Combine(content Digest, parts ...[]byte) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, p := range parts {
		_, _ = h.Write(p)
		// separator so that ("ab", "c") and ("a", "bc") differ
		_, _ = h.Write([]byte{0})
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
