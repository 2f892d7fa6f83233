package crypto

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
)

// GenerateNonce returns size cryptographically random bytes.
func GenerateNonce(size int) []byte {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return b
}

// GenerateStringNonce returns a random hex string of the given length.
func GenerateStringNonce(size int) string {
	b := GenerateNonce((size + 1) / 2)
	return hex.EncodeToString(b)[:size]
}

func Sha1Digest(b []byte) []byte {
	h := sha1.Sum(b)
	return h[:]
}

func Sha256Digest(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}
