// Package sas implements the short-authentication-string key-verification
// primitive of spec.md §4.10: each party publishes an ephemeral Curve25519
// public key, both sides derive the same X25519 shared secret, and that
// secret feeds an HKDF-based byte generator and three MAC variants: the
// current one and two historical ones kept for older peers. Grounded on
// the same curve25519/hkdf building blocks as the two-party session
// (crypto/curve25519, crypto/hkdf), reused here rather than introduced
// fresh since SAS is, structurally, a one-shot DH-then-HKDF exchange like
// the session's own root derivation.
package sas

import (
	"encoding/base64"

	"olmcore/crypto/curve25519"
	"olmcore/crypto/hkdf"
	"olmcore/crypto/hmac"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
)

// SAS holds one party's half of a short-authentication-string exchange.
type SAS struct {
	own        curve25519.KeyPair
	theirPub   curve25519.PublicKey
	haveTheir  bool
	secret     [32]byte
	haveSecret bool
}

// New generates a fresh Curve25519 pair for this party's half of the exchange.
func New(src entropy.Source) (*SAS, error) {
	kp, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return nil, err
	}
	return &SAS{own: kp}, nil
}

// GetPubkey returns this party's public key, to publish to the peer.
func (s *SAS) GetPubkey() curve25519.PublicKey { return s.own.Public }

// SetTheirKey records the peer's public key and derives the shared secret.
func (s *SAS) SetTheirKey(theirPub curve25519.PublicKey) error {
	shared, err := curve25519.DH(s.own.Private, theirPub)
	if err != nil {
		return err
	}
	s.theirPub = theirPub
	s.haveTheir = true
	s.secret = shared
	s.haveSecret = true
	return nil
}

func (s *SAS) requireSecret() error {
	if !s.haveSecret {
		return olmerr.ErrSASTheirKeyNotSet
	}
	return nil
}

// GenerateBytes returns HKDF(∅, secret, info, n): the short authentication
// string material both parties compute identically once keys are exchanged.
func (s *SAS) GenerateBytes(info string, n int) ([]byte, error) {
	if err := s.requireSecret(); err != nil {
		return nil, err
	}
	return hkdf.Derive(nil, s.secret[:], []byte(info), n)
}

// CalculateMac returns base64(unpadded) of HMAC-SHA-256(HKDF(∅, secret,
// info, 32), input): the current MAC method.
func (s *SAS) CalculateMac(input, info string) (string, error) {
	if err := s.requireSecret(); err != nil {
		return "", err
	}
	macKey, err := hkdf.Derive(nil, s.secret[:], []byte(info), 32)
	if err != nil {
		return "", err
	}
	mac := hmac.Sum256(macKey, []byte(input))
	return base64.RawStdEncoding.EncodeToString(mac), nil
}

// CalculateMacLongKdf reproduces an older MAC method kept for wire
// compatibility with peers that derive the HMAC key by expanding the HKDF
// output to the length of the input being MACed, rather than a fixed
// 32-byte key, before computing the same HMAC-SHA-256.
func (s *SAS) CalculateMacLongKdf(input, info string) (string, error) {
	if err := s.requireSecret(); err != nil {
		return "", err
	}
	kdfLen := len(input)
	if kdfLen == 0 {
		kdfLen = 32
	}
	macKey, err := hkdf.Derive(nil, s.secret[:], []byte(info), kdfLen)
	if err != nil {
		return "", err
	}
	mac := hmac.Sum256(macKey, []byte(input))
	return base64.RawStdEncoding.EncodeToString(mac), nil
}

// CalculateMacFixedBase64 is CalculateMac with the older padded standard
// base64 alphabet some peers still expect on the wire, instead of the
// unpadded encoding every other boundary value in this module uses.
func (s *SAS) CalculateMacFixedBase64(input, info string) (string, error) {
	if err := s.requireSecret(); err != nil {
		return "", err
	}
	macKey, err := hkdf.Derive(nil, s.secret[:], []byte(info), 32)
	if err != nil {
		return "", err
	}
	mac := hmac.Sum256(macKey, []byte(input))
	return base64.StdEncoding.EncodeToString(mac), nil
}

// Close zeroizes this party's private key and the derived shared secret.
func (s *SAS) Close() {
	zeroize.Bytes(s.own.Private[:])
	zeroize.Array32(&s.secret)
}
