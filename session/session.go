// Package session implements the two-party Olm session (C5): the X3DH-style
// pre-key handshake, encrypt/decrypt dispatch between pre-key and normal
// framing, and the receiver-side DH ratchet advance. The sender/receiver
// chain shape is the teacher's own (protocol/doubleratchet), generalized
// from its single active-chain test harness to the full multi-receiver-chain,
// skipped-key-cache session spec.md §3/§4.4/§4.5 describe.
package session

import (
	"olmcore/crypto/curve25519"
	"olmcore/crypto/ed25519"
	"olmcore/crypto/hmac"
	"olmcore/crypto/sha256"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/message"
	"olmcore/olmerr"
	"olmcore/ratchet"
)

// MaxReceiverChains bounds how many past receiver chains are retained to
// accept a late message after the DH ratchet has advanced again. Like
// ratchet.MaxSkippedMessageKeys this is a policy choice (spec.md §9), not a
// protocol constant; see DESIGN.md.
const MaxReceiverChains = 5

// Identity is the subset of an Account a Session needs: its own identity
// Curve25519 key pair and (for signing nothing here, kept for symmetry
// with Account's shape) its Ed25519 identity.
type Identity struct {
	Curve25519 curve25519.KeyPair
	Ed25519    ed25519.KeyPair
}

// Session is a two-party Olm ratchet session.
type Session struct {
	Received bool

	// idHash identifies this session independent of ratchet state; it is
	// derived once at creation from the three public keys the X3DH
	// handshake consumed. Close does not zeroize it, nor the handshake
	// fields below, which hold only public keys.
	idHash [32]byte

	// Handshake-framing fields. Encrypt puts them into pre-key messages
	// while !Received; they are kept, and pickled, for the whole life of
	// the session and are not cleared once a message has been received.
	ownIdentityPub    curve25519.PublicKey
	aliceBaseKeyPub   curve25519.PublicKey
	peerOneTimeKeyPub curve25519.PublicKey

	RootKey   [32]byte
	Sender    ratchet.SenderChain
	senderSet bool
	Receivers []ratchet.ReceiverChain
	Skipped   ratchet.SkippedCache

	// consumedOneTimeKeyID is the account-local id of the one-time (or
	// fallback) key this inbound session's handshake consumed, if any.
	// Account.RemoveOneTimeKeys uses it to evict exactly that key.
	consumedOneTimeKeyID    uint32
	hasConsumedOneTimeKeyID bool
}

// ConsumedOneTimeKeyID returns the account-local id of the one-time key
// this session's inbound handshake consumed, if it was created inbound.
func (s *Session) ConsumedOneTimeKeyID() (uint32, bool) {
	return s.consumedOneTimeKeyID, s.hasConsumedOneTimeKeyID
}

func idHash(a, b, c curve25519.PublicKey) [32]byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	buf = append(buf, c[:]...)
	var out [32]byte
	copy(out[:], sha256.Hash(buf))
	return out
}

// tripleDH runs the three Diffie-Hellman shares of spec.md §4.5 in the
// documented order and concatenates them.
func tripleDH(d1, d2, d3 [32]byte) []byte {
	out := make([]byte, 0, 96)
	out = append(out, d1[:]...)
	out = append(out, d2[:]...)
	out = append(out, d3[:]...)
	return out
}

// CreateOutbound runs Alice's side of the X3DH handshake against Bob's
// identity and one-time (or fallback) public keys and returns a fresh
// outbound session with an initialized sender chain.
func CreateOutbound(own Identity, peerIdentityPub, peerOneTimePub curve25519.PublicKey, src entropy.Source) (*Session, error) {
	base, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return nil, err
	}
	senderRatchet, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return nil, err
	}

	d1, err := curve25519.DH(own.Curve25519.Private, peerOneTimePub)
	if err != nil {
		return nil, err
	}
	d2, err := curve25519.DH(base.Private, peerIdentityPub)
	if err != nil {
		return nil, err
	}
	d3, err := curve25519.DH(base.Private, peerOneTimePub)
	if err != nil {
		return nil, err
	}

	derived, err := ratchet.InitialRootDerive(tripleDH(d1, d2, d3))
	if err != nil {
		return nil, err
	}

	s := &Session{
		Received:          false,
		ownIdentityPub:    own.Curve25519.Public,
		aliceBaseKeyPub:   base.Public,
		peerOneTimeKeyPub: peerOneTimePub,
		RootKey:           derived.RootKey,
		Sender: ratchet.SenderChain{
			Ratchet: senderRatchet,
			Chain:   ratchet.ChainKey{Index: 0, Key: derived.ChainKey},
		},
		senderSet: true,
	}
	s.idHash = idHash(own.Curve25519.Public, base.Public, peerOneTimePub)
	return s, nil
}

// CreateInboundFrom runs Bob's side of the handshake given the sender's
// identity key explicitly (used when it is known out of band rather than
// parsed from the pre-key message's identity_key field).
func CreateInboundFrom(own Identity, lookup OneTimeKeyLookup, senderIdentityPub curve25519.PublicKey, preKey message.PreKey) (*Session, []byte, error) {
	bobPriv, consumed, err := lookup.Find(preKey.OneTimeKey)
	if err != nil {
		return nil, nil, err
	}

	d1, err := curve25519.DH(bobPriv, senderIdentityPub)
	if err != nil {
		return nil, nil, err
	}
	d2, err := curve25519.DH(own.Curve25519.Private, preKey.BaseKey)
	if err != nil {
		return nil, nil, err
	}
	d3, err := curve25519.DH(bobPriv, preKey.BaseKey)
	if err != nil {
		return nil, nil, err
	}

	derived, err := ratchet.InitialRootDerive(tripleDH(d1, d2, d3))
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		Received:          false,
		ownIdentityPub:    own.Curve25519.Public,
		aliceBaseKeyPub:   preKey.BaseKey,
		peerOneTimeKeyPub: preKey.OneTimeKey,
		RootKey:           derived.RootKey,
		Receivers: []ratchet.ReceiverChain{{
			RatchetPub: preKey.Message.RatchetKey,
			Chain:      ratchet.ChainKey{Index: 0, Key: derived.ChainKey},
		}},
	}
	s.idHash = idHash(senderIdentityPub, preKey.BaseKey, preKey.OneTimeKey)

	plaintext, err := s.decryptWithChain(&s.Receivers[0], preKey.Message)
	if err != nil {
		return nil, nil, err
	}
	s.Received = true
	s.consumedOneTimeKeyID = consumed
	s.hasConsumedOneTimeKeyID = true
	return s, plaintext, nil
}

// CreateInbound is CreateInboundFrom using the identity key embedded in the
// pre-key message itself.
func CreateInbound(own Identity, lookup OneTimeKeyLookup, preKey message.PreKey) (*Session, []byte, error) {
	return CreateInboundFrom(own, lookup, preKey.IdentityKey, preKey)
}

// OneTimeKeyLookup resolves a pre-key message's one_time_key field to the
// matching private key. Account implements this by comparing the requested
// public value in constant time against every stored one-time and
// fallback key (spec.md §4.5 step 1).
type OneTimeKeyLookup interface {
	Find(pub curve25519.PublicKey) (priv curve25519.PrivateKey, consumedID uint32, err error)
}

// HasReceivedMessage reports whether any normal message has been decoded
// on this session yet.
func (s *Session) HasReceivedMessage() bool { return s.Received }

// SessionID returns a stable identifier for this session, independent of
// ratchet state, base64-less raw bytes (callers base64-encode at the
// boundary per spec.md §6).
func (s *Session) SessionID() [32]byte { return s.idHash }

// MatchesInboundFrom reports whether preKey belongs to the handshake that
// created this (inbound) session, by comparing its base key and one-time
// key with the ones recorded at creation, which are kept for the life of
// the session. senderIdentityPub is not compared.
func (s *Session) MatchesInboundFrom(senderIdentityPub curve25519.PublicKey, preKey message.PreKey) bool {
	return s.aliceBaseKeyPub == preKey.BaseKey && s.peerOneTimeKeyPub == preKey.OneTimeKey
}

// MatchesInbound is MatchesInboundFrom using the identity key embedded in
// the pre-key message.
func (s *Session) MatchesInbound(preKey message.PreKey) bool {
	return s.MatchesInboundFrom(preKey.IdentityKey, preKey)
}

// Encrypt produces the next outgoing message: pre-key framed while the
// session has not yet received a reply, normal framing afterwards.
func (s *Session) Encrypt(plaintext []byte, src entropy.Source) (message.MessageType, []byte, error) {
	if !s.senderSet {
		if err := s.bootstrapSenderChain(src); err != nil {
			return 0, nil, err
		}
	}

	mk := s.Sender.Chain.MessageKey()
	material, err := ratchet.DeriveMessageMaterial(mk)
	if err != nil {
		return 0, nil, err
	}
	defer zeroize.Array32(&material.AESKey)
	defer zeroize.Array32(&material.MACKey)
	defer zeroize.Bytes(mk.Key[:])
	ciphertext, err := encryptPayload(plaintext, material)
	if err != nil {
		return 0, nil, err
	}

	normal := message.Normal{
		RatchetKey: s.Sender.Ratchet.Public,
		Counter:    mk.Index,
		Ciphertext: ciphertext,
	}
	tag := hmac.Truncated8(material.MACKey[:], normal.EncodeUnauthenticated())
	copy(normal.Mac[:], tag)
	s.Sender.Chain.Advance()

	if !s.Received {
		pre := message.PreKey{
			OneTimeKey:  s.peerOneTimeKeyPub,
			BaseKey:     s.aliceBaseKeyPub,
			IdentityKey: s.ownIdentityPub,
			Message:     normal,
		}
		return message.TypePreKey, pre.Encode(), nil
	}
	return message.TypeNormal, normal.Encode(), nil
}

// bootstrapSenderChain performs the single-step DH ratchet a session without
// a sender chain yet needs before its first Encrypt: a fresh ratchet key
// pair is generated and folded against the most recent known remote ratchet
// key. Unlike a later DH ratchet advance (AdvanceSenderDH), there is no
// prior sending chain to retire, so only one HKDF step is required.
func (s *Session) bootstrapSenderChain(src entropy.Source) error {
	if len(s.Receivers) == 0 {
		return olmerr.ErrBadMessageFormat
	}
	remote := s.Receivers[len(s.Receivers)-1].RatchetPub
	newKeyPair, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return err
	}
	step, err := ratchet.DHRatchetStep(s.RootKey, newKeyPair.Private, remote)
	if err != nil {
		return err
	}
	s.RootKey = step.RootKey
	s.Sender = ratchet.SenderChain{Ratchet: newKeyPair, Chain: ratchet.ChainKey{Index: 0, Key: step.ChainKey}}
	s.senderSet = true
	return nil
}

// Decrypt dispatches on message type and returns the recovered plaintext.
func (s *Session) Decrypt(msgType message.MessageType, data []byte, src entropy.Source) ([]byte, error) {
	switch msgType {
	case message.TypePreKey:
		pre, err := message.DecodePreKey(data)
		if err != nil {
			return nil, err
		}
		if s.MatchesInboundFrom(pre.IdentityKey, pre) {
			return s.decryptNormalDispatch(pre.Message, src)
		}
		return nil, olmerr.ErrBadMessageFormat
	case message.TypeNormal:
		normal, err := message.DecodeNormal(data)
		if err != nil {
			return nil, err
		}
		return s.decryptNormalDispatch(normal, src)
	default:
		return nil, olmerr.ErrBadMessageVersion
	}
}

func (s *Session) decryptNormalDispatch(m message.Normal, src entropy.Source) ([]byte, error) {
	if mk, ok := s.Skipped.Take(m.RatchetKey, m.Counter); ok {
		pt, err := s.decryptMessageKey(mk, m)
		if err != nil {
			return nil, err
		}
		s.Received = true
		return pt, nil
	}

	for i := range s.Receivers {
		if s.Receivers[i].RatchetPub == m.RatchetKey {
			pt, err := s.decryptWithChain(&s.Receivers[i], m)
			if err != nil {
				return nil, err
			}
			s.Received = true
			return pt, nil
		}
	}

	if !s.senderSet {
		// A session that has never sent has exactly one receiver chain,
		// set up at creation time; a second, unrecognized ratchet key here
		// means the peer replied before ever seeing our first message,
		// which cannot happen in a correctly operated Double Ratchet.
		return nil, olmerr.ErrBadMessageFormat
	}

	newRoot, recvCK, newSender, sendCK, err := ratchet.AdvanceSenderDH(s.RootKey, s.Sender.Ratchet.Private, m.RatchetKey, src)
	if err != nil {
		return nil, err
	}
	chain := &ratchet.ReceiverChain{RatchetPub: m.RatchetKey, Chain: ratchet.ChainKey{Index: 0, Key: recvCK}}
	pt, err := s.decryptWithChain(chain, m)
	if err != nil {
		return nil, err
	}

	s.RootKey = newRoot
	s.Sender = ratchet.SenderChain{Ratchet: newSender, Chain: ratchet.ChainKey{Index: 0, Key: sendCK}}
	s.Receivers = append(s.Receivers, *chain)
	if len(s.Receivers) > MaxReceiverChains {
		s.Receivers = s.Receivers[len(s.Receivers)-MaxReceiverChains:]
	}
	s.Received = true
	return pt, nil
}

// decryptWithChain materializes skipped keys up to m.Counter (if needed),
// then decrypts with the resulting message key.
func (s *Session) decryptWithChain(chain *ratchet.ReceiverChain, m message.Normal) ([]byte, error) {
	mk, err := ratchet.AdvanceAndCollect(&chain.Chain, chain.RatchetPub, m.Counter, &s.Skipped)
	if err != nil {
		return nil, err
	}
	return s.decryptMessageKey(mk, m)
}

func (s *Session) decryptMessageKey(mk ratchet.MsgKey, m message.Normal) ([]byte, error) {
	material, err := ratchet.DeriveMessageMaterial(mk)
	if err != nil {
		return nil, err
	}
	defer zeroize.Array32(&material.AESKey)
	defer zeroize.Array32(&material.MACKey)
	defer zeroize.Bytes(mk.Key[:])
	wantTag := hmac.Truncated8(material.MACKey[:], m.EncodeUnauthenticated())
	if !constantTimeEqual(wantTag, m.Mac[:]) {
		return nil, olmerr.ErrBadMessageMac
	}
	return decryptPayload(m.Ciphertext, material)
}

// Describe produces a short diagnostic summary of internal indices; no
// secret material is included. Grounded on the teacher's fingerprint-style
// bounded digest (protocol/fingerprint/fingerprint.go) in spirit: a small,
// fixed-shape human-readable value derived from state, not raw key bytes.
func (s *Session) Describe() string {
	return describeSession(s)
}

// Close zeroizes every secret the session holds. Callers that keep a
// Session alive only for the duration of an exchange should call this once
// the session is no longer needed, rather than relying on garbage
// collection to scrub key material from memory.
func (s *Session) Close() {
	zeroize.Array32(&s.RootKey)
	zeroize.Bytes(s.Sender.Ratchet.Private[:])
	zeroize.Array32(&s.Sender.Chain.Key)
	for i := range s.Receivers {
		zeroize.Array32(&s.Receivers[i].Chain.Key)
	}
	s.Skipped.Zeroize()
}
