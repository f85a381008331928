// Package curve25519 implements the X25519 key agreement primitive (C1).
// It is grounded on the teacher's dh25519/key_ed25519 packages (key-pair
// struct, Public()/GetSharedSecret() shape) but swaps their kyber-backed
// scalar arithmetic for golang.org/x/crypto/curve25519, the dependency the
// teacher's own go.mod already carries and the only one in the pack that
// reproduces the standard X25519 clamping byte-for-byte (required for wire
// compatibility with the message and pickle formats in §4.2/§4.3).
package curve25519

import (
	cr "golang.org/x/crypto/curve25519"

	"olmcore/entropy"
	"olmcore/olmerr"
)

const (
	PublicKeySize  = 32
	PrivateKeySize = 32
)

type (
	PublicKey  [PublicKeySize]byte
	PrivateKey [PrivateKeySize]byte
)

// KeyPair is a Curve25519 key pair as stored on Account, Session and group
// ratchet state.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// KeyPairFromSeed clamps seed per the X25519 standard and derives the
// matching public key. Equivalent to the spec's x25519_keypair(seed32).
func KeyPairFromSeed(seed [32]byte) (KeyPair, error) {
	priv := seed
	pub, err := cr.X25519(priv[:], cr.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	var kp KeyPair
	kp.Private = PrivateKey(priv)
	copy(kp.Public[:], pub)
	return kp, nil
}

// GenerateKeyPair pulls a fresh seed from src and derives a key pair from it.
func GenerateKeyPair(src entropy.Source) (KeyPair, error) {
	seed, err := entropy.Seed32(src)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPairFromSeed(seed)
}

// DH computes the X25519 shared secret between priv and peerPub.
func DH(priv PrivateKey, peerPub PublicKey) ([32]byte, error) {
	shared, err := cr.X25519(priv[:], peerPub[:])
	if err != nil {
		return [32]byte{}, olmerr.ErrBadMessageFormat
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}
