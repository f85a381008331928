package group

import (
	"olmcore/crypto/aes256"
	"olmcore/crypto/ed25519"
	"olmcore/crypto/hmac"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
)

// OutboundGroupSession produces group messages for one sender: a hash
// ratchet plus the Ed25519 key pair used to sign every ciphertext.
type OutboundGroupSession struct {
	ratchet Ratchet
	signing ed25519.KeyPair
	id      [32]byte
}

// NewOutboundGroupSession starts a fresh outbound group session: a random
// ratchet and a fresh signing key pair.
func NewOutboundGroupSession(src entropy.Source) (*OutboundGroupSession, error) {
	r, err := New(src)
	if err != nil {
		return nil, err
	}
	signing, err := ed25519.GenerateKeyPair(src)
	if err != nil {
		return nil, err
	}
	idx, parts := r.Export()
	id := hmac.Sum256(signing.Public[:], encodeSessionKeyUnsigned(idx, parts, signing.Public))
	var out OutboundGroupSession
	copy(out.id[:], id)
	out.ratchet = r
	out.signing = signing
	return &out, nil
}

// SessionID returns a stable identifier derived from the session's signing
// key and its initial ratchet export.
func (s *OutboundGroupSession) SessionID() [32]byte { return s.id }

// MessageIndex returns the ratchet counter the next Encrypt call will use.
func (s *OutboundGroupSession) MessageIndex() uint32 { return s.ratchet.Counter }

// SessionKey renders the signed session-key distribution blob (spec.md
// §4.8): other participants import it to construct an InboundGroupSession
// that can verify this session's signature.
func (s *OutboundGroupSession) SessionKey() ([]byte, error) {
	idx, parts := s.ratchet.Export()
	unsigned := encodeSessionKeyUnsigned(idx, parts, s.signing.Public)
	sig := ed25519.Sign(s.signing.Private, unsigned)
	return append(unsigned, sig[:]...), nil
}

// Encrypt derives the message key material at the current index, encrypts
// plaintext, signs the result and advances the ratchet by one.
func (s *OutboundGroupSession) Encrypt(plaintext []byte, src entropy.Source) ([]byte, error) {
	material, err := s.ratchet.DeriveMessageMaterial()
	if err != nil {
		return nil, err
	}
	defer zeroize.Array32(&material.AESKey)
	defer zeroize.Array32(&material.MACKey)
	ciphertext, err := aes256.Encrypt(plaintext, material.AESKey, material.IV)
	if err != nil {
		return nil, err
	}
	m := groupMessage{Index: s.ratchet.Counter, Ciphertext: ciphertext}
	sig := ed25519.Sign(s.signing.Private, m.encodeUnsigned())
	m.Signature = sig

	if err := s.ratchet.AdvanceTo(s.ratchet.Counter + 1); err != nil {
		return nil, err
	}
	return m.encode(), nil
}

// Close zeroizes the session's ratchet state and signing private key.
func (s *OutboundGroupSession) Close() {
	s.ratchet.Zeroize()
	zeroize.Bytes(s.signing.Private[:])
}

// inboundExport is one previously exported (index, R[0..3]) pair kept so a
// receiver can still decrypt indices below its current ratchet position.
type inboundExport struct {
	ratchet Ratchet
}

// InboundGroupSession decrypts group messages produced by one
// OutboundGroupSession, verifying each against the bundled signing key.
type InboundGroupSession struct {
	ratchet         Ratchet
	signingPub      ed25519.PublicKey
	id              [32]byte
	firstKnownIndex uint32
	verified        bool
	earlierExports  []inboundExport
}

// NewInboundGroupSession constructs an InboundGroupSession from a signed
// session-key blob (the output of OutboundGroupSession.SessionKey). The
// embedded signature is verified immediately: an inbound session created
// this way can later report itself as verified.
func NewInboundGroupSession(sessionKey []byte) (*InboundGroupSession, error) {
	if len(sessionKey) != sessionKeyBlobSignedSize {
		return nil, olmerr.ErrInputBufferTooSmall
	}
	unsigned := sessionKey[:sessionKeyBlobUnsignedSize]
	sig := sessionKey[sessionKeyBlobUnsignedSize:]
	index, parts, signingPub, err := decodeSessionKeyUnsigned(unsigned)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(signingPub, unsigned, sig) {
		return nil, olmerr.ErrBadSignature
	}
	r := Import(index, parts)
	id := hmac.Sum256(signingPub[:], unsigned)
	var out InboundGroupSession
	copy(out.id[:], id)
	out.ratchet = r
	out.signingPub = signingPub
	out.firstKnownIndex = index
	out.verified = true
	return &out, nil
}

// ImportSession constructs an InboundGroupSession from the unsigned
// "import"/re-sharing form of the session-key blob. A session constructed
// this way can never be promoted back to verified (spec.md §4.8).
func ImportSession(sessionKey []byte) (*InboundGroupSession, error) {
	if len(sessionKey) != sessionKeyBlobUnsignedSize {
		return nil, olmerr.ErrInputBufferTooSmall
	}
	index, parts, signingPub, err := decodeSessionKeyUnsigned(sessionKey)
	if err != nil {
		return nil, err
	}
	r := Import(index, parts)
	id := hmac.Sum256(signingPub[:], sessionKey)
	var out InboundGroupSession
	copy(out.id[:], id)
	out.ratchet = r
	out.signingPub = signingPub
	out.firstKnownIndex = index
	out.verified = false
	return &out, nil
}

// SessionID returns the identifier derived from the signing key and the
// ratchet state the session was constructed from.
func (s *InboundGroupSession) SessionID() [32]byte { return s.id }

// FirstKnownIndex returns the index the session was created or imported
// at. Decrypt and ExportSession fast-forward the live ratchet, after which
// indices below the live counter decrypt only through a retained export;
// the value returned here does not change when that happens.
func (s *InboundGroupSession) FirstKnownIndex() uint32 { return s.firstKnownIndex }

// IsVerified reports whether this session's origin was authenticated by a
// signed session-key blob rather than an unsigned import.
func (s *InboundGroupSession) IsVerified() bool { return s.verified }

// Decrypt verifies m's signature, locates (or fast-forwards to) the ratchet
// state for its index and recovers the plaintext. Indices below the
// earliest index this session (or one of its earlier exports) knows about
// fail with UnknownMessageIndex.
func (s *InboundGroupSession) Decrypt(data []byte) (uint32, []byte, error) {
	m, err := decodeGroupMessage(data)
	if err != nil {
		return 0, nil, err
	}
	if !ed25519.Verify(s.signingPub, m.encodeUnsigned(), m.Signature[:]) {
		return 0, nil, olmerr.ErrBadSignature
	}

	r, err := s.ratchetFor(m.Index)
	if err != nil {
		return 0, nil, err
	}

	material, err := r.DeriveMessageMaterial()
	if err != nil {
		return 0, nil, err
	}
	defer zeroize.Array32(&material.AESKey)
	defer zeroize.Array32(&material.MACKey)
	plaintext, err := aes256.Decrypt(m.Ciphertext, material.AESKey, material.IV)
	if err != nil {
		return 0, nil, olmerr.ErrBadMessageMac
	}
	return m.Index, plaintext, nil
}

// ratchetFor returns a ratchet state usable to derive the key at index,
// fast-forwarding the live ratchet (or, failing that, the best retained
// earlier export) up to it. A fast-forward of the live ratchet is written
// back to s.ratchet, so in-order delivery never re-derives from the
// session's original base state.
func (s *InboundGroupSession) ratchetFor(index uint32) (Ratchet, error) {
	if index >= s.ratchet.Counter {
		if err := s.ratchet.AdvanceTo(index); err != nil {
			return Ratchet{}, err
		}
		return s.ratchet, nil
	}
	for _, e := range s.earlierExports {
		if index >= e.ratchet.Counter {
			r := e.ratchet
			if err := r.AdvanceTo(index); err != nil {
				continue
			}
			return r, nil
		}
	}
	return Ratchet{}, olmerr.ErrUnknownMessageIndex
}

// Close zeroizes the session's live ratchet and every retained earlier
// export.
func (s *InboundGroupSession) Close() {
	s.ratchet.Zeroize()
	for i := range s.earlierExports {
		s.earlierExports[i].ratchet.Zeroize()
	}
}

// ExportSession captures the session's state at index as a re-shareable,
// unsigned blob. index must be at or above the live ratchet's counter (the
// live ratchet is fast-forwarded to it) or reachable from a retained
// earlier export. The originating InboundGroupSession retains the export so
// it can still decrypt down to that index afterwards.
func (s *InboundGroupSession) ExportSession(index uint32) ([]byte, error) {
	r, err := s.ratchetFor(index)
	if err != nil {
		return nil, err
	}
	s.earlierExports = append(s.earlierExports, inboundExport{ratchet: r})
	idx, parts := r.Export()
	return encodeSessionKeyUnsigned(idx, parts, s.signingPub), nil
}
