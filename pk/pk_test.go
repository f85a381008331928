package pk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmcore/crypto/curve25519"
	"olmcore/internal/testentropy"
)

func TestPkEncryptDecryptRoundTrip(t *testing.T) {
	src := &testentropy.Counter{Seed: 1}
	recipient, err := curve25519.GenerateKeyPair(src)
	require.NoError(t, err)

	enc := NewPkEncryption(recipient.Public)
	dec := NewPkDecryption(recipient)

	encrypted, err := enc.Encrypt([]byte("top secret"), src)
	require.NoError(t, err)

	plaintext, err := dec.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []byte("top secret"), plaintext)
}

func TestPkDecryptRejectsTamperedMac(t *testing.T) {
	src := &testentropy.Counter{Seed: 2}
	recipient, err := curve25519.GenerateKeyPair(src)
	require.NoError(t, err)

	enc := NewPkEncryption(recipient.Public)
	dec := NewPkDecryption(recipient)

	encrypted, err := enc.Encrypt([]byte("top secret"), src)
	require.NoError(t, err)
	encrypted.Mac = "AAAAAAAAAAA"

	_, err = dec.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestPkSigningDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	s1 := NewPkSigning(seed)
	s2 := NewPkSigning(seed)

	sig1 := s1.Sign([]byte("message"))
	sig2 := s2.Sign([]byte("message"))
	assert.Equal(t, sig1, sig2)
}
