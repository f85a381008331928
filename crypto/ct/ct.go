// Package ct provides constant-time comparisons for MAC and key-lookup
// checks. The teacher's own doubleratchet/utils.go reaches for
// crypto/hmac.Equal when comparing a computed tag against the wire value
// (hmac2.Equal in protocol/doubleratchet/utils.go); this package generalizes
// that same stdlib primitive to every constant-time comparison the core
// needs (MAC checks, one-time-key lookup by public value, pickle MAC checks).
package ct

import "crypto/subtle"

// Equal reports whether a and b hold the same bytes, in constant time with
// respect to their contents. Differing lengths short-circuit (the length of
// a public key or tag is not secret).
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
