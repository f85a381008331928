// Package pk implements the single-recipient public-key encryption and
// deterministic signing primitives of spec.md §4.9: PkEncryption/
// PkDecryption share the same HKDF("OLM_KEYS") message-key schedule the
// two-party session uses (ratchet.DeriveMessageMaterial), grounded on the
// teacher's reuse of one KDF_CK/KDF_RK style derivation across its session
// and handshake code rather than inventing a second schedule.
package pk

import (
	"encoding/base64"

	"olmcore/crypto/aes256"
	"olmcore/crypto/ct"
	"olmcore/crypto/curve25519"
	"olmcore/crypto/ed25519"
	"olmcore/crypto/hmac"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
	"olmcore/ratchet"
)

func constantTimeEqual(a, b []byte) bool { return ct.Equal(a, b) }

// Encrypted is the base64 triple PkEncryption.encrypt returns: ciphertext,
// an 8-byte truncated MAC, and the sender's ephemeral public key.
type Encrypted struct {
	Ciphertext  string
	Mac         string
	EphemeralPub string
}

// PkEncryption encrypts to a fixed recipient Curve25519 public key.
type PkEncryption struct {
	recipient curve25519.PublicKey
}

// NewPkEncryption binds a PkEncryption to recipient's public key.
func NewPkEncryption(recipient curve25519.PublicKey) *PkEncryption {
	return &PkEncryption{recipient: recipient}
}

// Encrypt generates a fresh ephemeral key pair, derives message material
// from its X25519 shared secret with the recipient, and returns the
// base64-encoded ciphertext/mac/ephemeral-public triple.
func (p *PkEncryption) Encrypt(plaintext []byte, src entropy.Source) (Encrypted, error) {
	ephemeral, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return Encrypted{}, err
	}
	defer zeroize.Bytes(ephemeral.Private[:])
	shared, err := curve25519.DH(ephemeral.Private, p.recipient)
	if err != nil {
		return Encrypted{}, err
	}
	material, err := ratchet.DeriveMessageMaterial(ratchet.MsgKey{Key: shared})
	if err != nil {
		return Encrypted{}, err
	}
	defer zeroize.Array32(&shared)
	defer zeroize.Array32(&material.AESKey)
	defer zeroize.Array32(&material.MACKey)
	ciphertext, err := aes256.Encrypt(plaintext, material.AESKey, material.IV)
	if err != nil {
		return Encrypted{}, err
	}
	mac := hmac.Truncated8(material.MACKey[:], ciphertext)

	return Encrypted{
		Ciphertext:   base64.RawStdEncoding.EncodeToString(ciphertext),
		Mac:          base64.RawStdEncoding.EncodeToString(mac),
		EphemeralPub: base64.RawStdEncoding.EncodeToString(ephemeral.Public[:]),
	}, nil
}

// PkDecryption is the inverse of PkEncryption, holding the recipient's
// private key.
type PkDecryption struct {
	priv curve25519.PrivateKey
	pub  curve25519.PublicKey
}

// NewPkDecryption wraps an existing Curve25519 key pair for decryption.
func NewPkDecryption(kp curve25519.KeyPair) *PkDecryption {
	return &PkDecryption{priv: kp.Private, pub: kp.Public}
}

// PublicKey returns the recipient public key senders should encrypt
// against.
func (d *PkDecryption) PublicKey() curve25519.PublicKey { return d.pub }

// Decrypt recovers the plaintext of enc, verifying its MAC first.
func (d *PkDecryption) Decrypt(enc Encrypted) ([]byte, error) {
	ciphertext, err := base64.RawStdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return nil, olmerr.ErrInvalidBase64
	}
	mac, err := base64.RawStdEncoding.DecodeString(enc.Mac)
	if err != nil {
		return nil, olmerr.ErrInvalidBase64
	}
	ephemeralRaw, err := base64.RawStdEncoding.DecodeString(enc.EphemeralPub)
	if err != nil {
		return nil, olmerr.ErrInvalidBase64
	}
	if len(ephemeralRaw) != curve25519.PublicKeySize {
		return nil, olmerr.ErrBadMessageFormat
	}
	var ephemeralPub curve25519.PublicKey
	copy(ephemeralPub[:], ephemeralRaw)

	shared, err := curve25519.DH(d.priv, ephemeralPub)
	if err != nil {
		return nil, err
	}
	material, err := ratchet.DeriveMessageMaterial(ratchet.MsgKey{Key: shared})
	if err != nil {
		return nil, err
	}
	defer zeroize.Array32(&shared)
	defer zeroize.Array32(&material.AESKey)
	defer zeroize.Array32(&material.MACKey)
	wantMac := hmac.Truncated8(material.MACKey[:], ciphertext)
	if !constantTimeEqual(wantMac, mac) {
		return nil, olmerr.ErrBadMessageMac
	}
	plaintext, err := aes256.Decrypt(ciphertext, material.AESKey, material.IV)
	if err != nil {
		return nil, olmerr.ErrBadMessageMac
	}
	return plaintext, nil
}

// Close zeroizes the recipient's private key.
func (d *PkDecryption) Close() {
	zeroize.Bytes(d.priv[:])
}

// PkSigning wraps Ed25519 over a caller-supplied seed. Ed25519 signatures
// are deterministic by construction (no nonce reuse risk), so this is a
// thin convenience wrapper rather than a distinct signing scheme.
type PkSigning struct {
	keys ed25519.KeyPair
}

// NewPkSigning expands seed into an Ed25519 key pair.
func NewPkSigning(seed [32]byte) *PkSigning {
	return &PkSigning{keys: ed25519.KeyPairFromSeed(seed)}
}

// PublicKey returns the signing public key peers verify against.
func (s *PkSigning) PublicKey() ed25519.PublicKey { return s.keys.Public }

// Sign signs msg.
func (s *PkSigning) Sign(msg []byte) [ed25519.SignatureSize]byte {
	return ed25519.Sign(s.keys.Private, msg)
}

// Close zeroizes the signing private key.
func (s *PkSigning) Close() {
	zeroize.Bytes(s.keys.Private[:])
}
