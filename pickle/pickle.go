// Package pickle implements the versioned, encrypted, MAC'd at-rest
// envelope of spec.md §4.3: version_be32 || aes_cbc_ciphertext || mac8,
// plus the typed field writer/reader used to encode the decrypted payload.
//
// The field-at-a-time PickleLibOlm/UnpickleLibOlm convention this package
// follows (a Write*/Read* method per primitive field, called in the exact
// order an object's version dictates) is grounded on the one goolm source
// file retrieved for this spec (mautrix-go's
// crypto/goolm/ratchet/chain.go), which is itself a Go port of libolm's own
// pickling — the closest precedent in the corpus for "versioned pickle
// with multiple historical layouts per class" (spec.md §9).
package pickle

import (
	"encoding/base64"
	"encoding/binary"

	"olmcore/crypto/aes256"
	"olmcore/crypto/ct"
	"olmcore/crypto/hkdf"
	"olmcore/crypto/hmac"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
)

const macSize = 8

// deriveKeys reproduces spec.md §4.3 exactly: the first 80 bytes of
// HKDF-SHA-256(salt=∅, ikm=userKey, info=∅) split into a 32-byte AES key, a
// 32-byte MAC key and a 16-byte IV, in that order.
func deriveKeys(userKey []byte) (aesKey [32]byte, macKey [32]byte, iv [16]byte, err error) {
	material, err := hkdf.Derive(nil, userKey, nil, 80)
	if err != nil {
		return aesKey, macKey, iv, err
	}
	copy(aesKey[:], material[0:32])
	copy(macKey[:], material[32:64])
	copy(iv[:], material[64:80])
	return aesKey, macKey, iv, nil
}

// Seal encrypts payload (the typed field encoding of an object at the given
// version) under userKey and returns the standard (padded) base64 pickle.
func Seal(userKey []byte, version uint32, payload []byte) (string, error) {
	aesKey, macKey, iv, err := deriveKeys(userKey)
	if err != nil {
		return "", err
	}
	defer zeroKeys(&aesKey, &macKey, &iv)

	ciphertext, err := aes256.Encrypt(payload, aesKey, iv)
	if err != nil {
		return "", err
	}

	var versionBE [4]byte
	binary.BigEndian.PutUint32(versionBE[:], version)

	macInput := append(append([]byte(nil), versionBE[:]...), ciphertext...)
	tag := hmac.Truncated8(macKey[:], macInput)

	blob := make([]byte, 0, 4+len(ciphertext)+macSize)
	blob = append(blob, versionBE[:]...)
	blob = append(blob, ciphertext...)
	blob = append(blob, tag...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open verifies and decrypts a pickle blob, returning its version and the
// decrypted payload. The MAC is checked in constant time before any
// decryption happens, per spec.md §4.3's "verify MAC first" rule.
func Open(userKey []byte, encoded string) (version uint32, payload []byte, err error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, nil, olmerr.ErrInvalidBase64
	}
	if len(blob) < 4+macSize {
		return 0, nil, olmerr.ErrInputBufferTooSmall
	}

	versionBE := blob[:4]
	ciphertext := blob[4 : len(blob)-macSize]
	wantTag := blob[len(blob)-macSize:]

	aesKey, macKey, iv, err := deriveKeys(userKey)
	if err != nil {
		return 0, nil, err
	}
	defer zeroKeys(&aesKey, &macKey, &iv)

	macInput := append(append([]byte(nil), versionBE...), ciphertext...)
	gotTag := hmac.Truncated8(macKey[:], macInput)
	if !ct.Equal(gotTag, wantTag) {
		return 0, nil, olmerr.ErrBadMessageMac
	}

	plaintext, err := aes256.Decrypt(ciphertext, aesKey, iv)
	if err != nil {
		return 0, nil, olmerr.ErrBadMessageMac
	}

	return binary.BigEndian.Uint32(versionBE), plaintext, nil
}

func zeroKeys(aesKey, macKey *[32]byte, iv *[16]byte) {
	zeroize.Array32(aesKey)
	zeroize.Array32(macKey)
	zeroize.Array16(iv)
}
