// Package hkdf wraps golang.org/x/crypto/hkdf with the fixed SHA-256 hash
// every ratchet, pickle and SAS derivation in this module uses.
package hkdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Expand runs HKDF-SHA-256 over ikm with the given salt and info and fills
// out with the derived bytes. salt and info may both be nil/empty.
func Expand(salt, ikm, info []byte, out []byte) error {
	reader := hkdf.New(sha256.New, ikm, salt, info)
	_, err := io.ReadFull(reader, out)
	return err
}

// Derive is a convenience wrapper that allocates and returns outLen bytes.
func Derive(salt, ikm, info []byte, outLen int) ([]byte, error) {
	out := make([]byte, outLen)
	if err := Expand(salt, ikm, info, out); err != nil {
		return nil, err
	}
	return out, nil
}
