// Package ed25519 implements identity and signing key pairs (C1). The
// teacher imports golang.org/x/crypto/ed25519 directly in its
// DoubleRatchet interface (protocol/doubleratchet/doubleratchet.go) when it
// needed the standard curve rather than its kyber-backed key_ed25519 type;
// this package follows that same precedent for every Ed25519 use in this
// module, since RFC 8032 vector parity (spec §8 S1) requires the standard
// expansion, which kyber's Ed25519 suite does not reproduce byte-for-byte.
package ed25519

import (
	"crypto/ed25519"

	"olmcore/entropy"
)

const (
	PublicKeySize  = ed25519.PublicKeySize  // 32
	PrivateKeySize = ed25519.PrivateKeySize // 64 (seed || public, scalar||prefix expansion done internally)
	SignatureSize  = ed25519.SignatureSize  // 64
)

type (
	PublicKey  [PublicKeySize]byte
	PrivateKey [PrivateKeySize]byte
)

type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// KeyPairFromSeed expands a 32-byte seed into an Ed25519 key pair per the
// standard deterministic expansion (spec's ed25519_keypair_from_seed).
func KeyPairFromSeed(seed [32]byte) KeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var kp KeyPair
	copy(kp.Private[:], priv)
	copy(kp.Public[:], priv.Public().(ed25519.PublicKey))
	return kp
}

// GenerateKeyPair pulls a fresh seed from src and expands it.
func GenerateKeyPair(src entropy.Source) (KeyPair, error) {
	seed, err := entropy.Seed32(src)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPairFromSeed(seed), nil
}

// Sign produces a deterministic Ed25519 signature over msg. Ed25519 has no
// randomized-signature variant, so this doubles as the "deterministic
// signer" §4.9 PkSigning wraps over a caller-supplied seed.
func Sign(priv PrivateKey, msg []byte) [SignatureSize]byte {
	sig := ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
	var out [SignatureSize]byte
	copy(out[:], sig)
	return out
}

// Verify reports whether sig is a valid Ed25519 signature over msg under pub.
func Verify(pub PublicKey, msg []byte, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
