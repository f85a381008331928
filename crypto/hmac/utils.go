package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Sum256 returns HMAC-SHA-256(key, data).
func Sum256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Truncated8 returns the first 8 bytes of HMAC-SHA-256(key, data), the
// truncated MAC used to authenticate Olm messages and pickles.
func Truncated8(key, data []byte) []byte {
	return Sum256(key, data)[:8]
}
