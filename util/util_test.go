package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmcore/crypto/ed25519"
	"olmcore/internal/testentropy"
)

func TestSha256Deterministic(t *testing.T) {
	a := Sha256([]byte("hello"))
	b := Sha256([]byte("hello"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Sha256([]byte("goodbye")))
}

func TestEd25519VerifyRoundTrip(t *testing.T) {
	kp, err := ed25519.GenerateKeyPair(&testentropy.Counter{Seed: 1})
	require.NoError(t, err)

	msg := []byte("verify me")
	sig := ed25519.Sign(kp.Private, msg)

	pubB64 := base64.RawStdEncoding.EncodeToString(kp.Public[:])
	sigB64 := base64.RawStdEncoding.EncodeToString(sig[:])

	assert.NoError(t, Ed25519Verify(pubB64, msg, sigB64))

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xff
	assert.Error(t, Ed25519Verify(pubB64, tampered, sigB64))
}
