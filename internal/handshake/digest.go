package handshake

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
)

// digestLength is the size of every keyed digest block on the wire.
const digestLength = 32

// The digest offset inside a token payload is derived from a 4-byte window
// after the uptime/version prefix: sum of the window bytes, modulo the
// window span, plus the base offset.
const (
	digestWindow     = 728
	digestBaseOffset = 12
	digestWindowPos  = 8
)

// Well-known peer validation keys for the digest-capable handshake.
var (
	clientKey = []byte("Genuine Adobe Flash Player 001")
	serverKey = []byte("Genuine Adobe Flash Media Server 001")
)

// digest computes the keyed HMAC-SHA256 digest of payload.
func digest(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// digestOffset derives where the 32-byte digest block sits inside a
// 1536-byte token payload.
func digestOffset(payload []byte) int {
	sum := 0
	for _, b := range payload[digestWindowPos : digestWindowPos+4] {
		sum += int(b)
	}
	return sum%digestWindow + digestBaseOffset
}

// generateBytes fills a fresh buffer with cryptographically random bytes.
func generateBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
