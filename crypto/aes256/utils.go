// Package aes256 implements AES-256-CBC encryption with PKCS#7 padding (C1),
// used by the message codec for ciphertext and by the pickle codec for the
// at-rest envelope. Grounded on the teacher's crypto/aes256/utils.go, which
// reaches for the same stdlib crypto/aes and crypto/cipher primitives;
// keys here are always HKDF-derived per message/pickle, so the teacher's
// ambient NewKey helper has no caller and is dropped.
package aes256

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

var ErrCiphertextLengthInvalid = errors.New("aes256: ciphertext length invalid")

// Encrypt encrypts plaintext using AES-256 in CBC mode with PKCS#7 padding.
func Encrypt(plaintext []byte, key [32]byte, iv [16]byte) (ciphertext []byte, err error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	padded := padPKCS7(plaintext, block.BlockSize())
	ciphertext = make([]byte, len(padded))

	mode := cipher.NewCBCEncrypter(block, iv[:])
	mode.CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt decrypts ciphertext using AES-256 in CBC mode with PKCS#7 padding.
func Decrypt(ciphertext []byte, key [32]byte, iv [16]byte) (plaintext []byte, err error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrCiphertextLengthInvalid
	}

	mode := cipher.NewCBCDecrypter(block, iv[:])
	plaintext = make([]byte, len(ciphertext))
	mode.CryptBlocks(plaintext, ciphertext)

	return stripPKCS7(plaintext)
}

// padPKCS7 appends n copies of byte n, where n is the number of bytes
// needed to bring data up to the next multiple of blockSize (n == blockSize
// when data is already aligned).
func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// stripPKCS7 validates and removes a PKCS#7 pad: the trailing byte gives the
// pad length, and every byte in that span must carry the same value.
func stripPKCS7(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, ErrCiphertextLengthInvalid
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > n {
		return nil, ErrCiphertextLengthInvalid
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, ErrCiphertextLengthInvalid
		}
	}
	return data[:n-padLen], nil
}
