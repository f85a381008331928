// Package util implements the small set of stateless helpers spec.md §6
// exposes directly to callers outside any session/account object:
// Utility.sha256 and Utility.ed25519_verify.
package util

import (
	"encoding/base64"

	"olmcore/crypto/ed25519"
	"olmcore/crypto/sha256"
	"olmcore/olmerr"
)

// Sha256 returns the unpadded-base64 SHA-256 digest of input.
func Sha256(input []byte) string {
	return base64.RawStdEncoding.EncodeToString(sha256.Hash(input))
}

// Ed25519Verify verifies sig over msg under the base64-encoded public key
// pubB64, returning ErrBadSignature on failure.
func Ed25519Verify(pubB64 string, msg []byte, sigB64 string) error {
	pubRaw, err := base64.RawStdEncoding.DecodeString(pubB64)
	if err != nil {
		return olmerr.ErrInvalidBase64
	}
	if len(pubRaw) != ed25519.PublicKeySize {
		return olmerr.ErrBadMessageFormat
	}
	var pub ed25519.PublicKey
	copy(pub[:], pubRaw)

	sig, err := base64.RawStdEncoding.DecodeString(sigB64)
	if err != nil {
		return olmerr.ErrInvalidBase64
	}
	if !ed25519.Verify(pub, msg, sig) {
		return olmerr.ErrBadSignature
	}
	return nil
}
