// Package ratchet implements the symmetric chain and Diffie-Hellman ratchet
// (C4) shared by the Olm session: chain key advance, per-message key
// derivation, DH ratchet advance and the skipped-message-key cache. The
// chain/message-key split (ChainKey{Index,Key} advanced by
// HMAC(ck, 0x02), message key = HMAC(ck, 0x01)) mirrors the teacher's
// protocol/doubleratchet KDF_CK exactly; the field-pickling shape of
// ChainKey/SenderChain/ReceiverChain below is grounded on the one goolm
// source file in the pack (mautrix-go crypto/goolm/ratchet/chain.go),
// which defines the same three types for the same reason (libolm's actual
// on-disk ratchet layout).
package ratchet

import (
	"olmcore/crypto/curve25519"
	"olmcore/crypto/hkdf"
	"olmcore/crypto/hmac"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
)

const (
	chainKeySeed    = 0x02
	msgKeySeed      = 0x01
	hkdfInfoRoot    = "OLM_ROOT"
	hkdfInfoKeys    = "OLM_KEYS"
	hkdfInfoRatchet = "OLM_RATCHET"

	// MaxMessageGap bounds how far ahead of a chain's current index a
	// message counter may sit before decryption is refused outright — the
	// DoS guard from spec.md §4.4. It is a policy constant, not a protocol
	// one (spec.md §9 Open Questions); see DESIGN.md for the decision to
	// keep libolm's published value.
	MaxMessageGap = 2000

	// MaxSkippedMessageKeys bounds the skipped-key cache itself; once full,
	// the oldest entry is evicted to make room for a new one (spec.md §9's
	// "ordered container ... capacity-bounded with LRU-on-overflow").
	MaxSkippedMessageKeys = 2000
)

// ChainKey is a symmetric ratchet chain's current position.
type ChainKey struct {
	Index uint32
	Key   [32]byte
}

// Advance derives the next chain key: CK_{i+1} = HMAC(CK_i, 0x02).
func (c *ChainKey) Advance() {
	next := hmac.Sum256(c.Key[:], []byte{chainKeySeed})
	copy(c.Key[:], next)
	c.Index++
}

// MessageKey derives this chain position's message key: MK_i = HMAC(CK_i, 0x01).
func (c ChainKey) MessageKey() MsgKey {
	mk := hmac.Sum256(c.Key[:], []byte{msgKeySeed})
	var out MsgKey
	out.Index = c.Index
	copy(out.Key[:], mk)
	return out
}

// MsgKey is a single per-message symmetric key tagged with its chain index.
type MsgKey struct {
	Index uint32
	Key   [32]byte
}

// MessageMaterial is the 80-byte HKDF expansion of a message key into the
// AES key, HMAC key and IV used to encrypt/decrypt and MAC one message.
type MessageMaterial struct {
	AESKey [32]byte
	MACKey [32]byte
	IV     [16]byte
}

// DeriveMessageMaterial expands mk via HKDF(salt=0^32, ikm=mk, info="OLM_KEYS", 80).
func DeriveMessageMaterial(mk MsgKey) (MessageMaterial, error) {
	var zeroSalt [32]byte
	out, err := hkdf.Derive(zeroSalt[:], mk.Key[:], []byte(hkdfInfoKeys), 80)
	if err != nil {
		return MessageMaterial{}, err
	}
	var m MessageMaterial
	copy(m.AESKey[:], out[0:32])
	copy(m.MACKey[:], out[32:64])
	copy(m.IV[:], out[64:80])
	return m, nil
}

// SenderChain is the sending side of a ratchet: the active DH ratchet key
// pair and the current chain key derived from it.
type SenderChain struct {
	Ratchet curve25519.KeyPair
	Chain   ChainKey
}

// ReceiverChain is one receiving side of a ratchet: a remote ratchet public
// key and the chain key derived for messages under it.
type ReceiverChain struct {
	RatchetPub curve25519.PublicKey
	Chain      ChainKey
}

// SkippedKey is one materialized-but-not-yet-consumed message key, tagged
// by the receiver chain it belongs to and its index within that chain.
type SkippedKey struct {
	RatchetPub curve25519.PublicKey
	Index      uint32
	Key        MsgKey
}

// SkippedCache is the ordered, capacity-bounded skipped-message-key store
// of spec.md §4.4. Insertion order doubles as LRU order: the oldest entry
// is evicted first when the cache is full.
type SkippedCache struct {
	entries []SkippedKey
}

// Put stores k, evicting the oldest entry first if the cache is full.
func (c *SkippedCache) Put(k SkippedKey) {
	if len(c.entries) >= MaxSkippedMessageKeys {
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, k)
}

// Take removes and returns the message key for (ratchetPub, index), if any.
func (c *SkippedCache) Take(ratchetPub curve25519.PublicKey, index uint32) (MsgKey, bool) {
	for i, e := range c.entries {
		if e.RatchetPub == ratchetPub && e.Index == index {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return e.Key, true
		}
	}
	return MsgKey{}, false
}

// Len reports the number of cached skipped keys.
func (c *SkippedCache) Len() int { return len(c.entries) }

// Snapshot returns the cache's entries in insertion (eviction) order, for
// pickling.
func (c *SkippedCache) Snapshot() []SkippedKey {
	out := make([]SkippedKey, len(c.entries))
	copy(out, c.entries)
	return out
}

// NewSkippedCacheFromSnapshot restores a cache previously captured with
// Snapshot, as done when unpickling a session.
func NewSkippedCacheFromSnapshot(entries []SkippedKey) SkippedCache {
	return SkippedCache{entries: entries}
}

// Zeroize overwrites every cached message key in place and empties the
// cache, for use when the owning session is closed.
func (c *SkippedCache) Zeroize() {
	for i := range c.entries {
		zeroize.Array32(&c.entries[i].Key.Key)
	}
	c.entries = nil
}

// AdvanceAndCollect advances chain from its current index up to (and
// including the key for) targetIndex, appending every intermediate message
// key except the target's own to skipped, tagged with ratchetPub. It
// returns the target index's message key and leaves chain at
// targetIndex+1, so that key is never derived or cached again. Returns
// ErrTooManySkippedKeys if the jump exceeds MaxMessageGap.
func AdvanceAndCollect(chain *ChainKey, ratchetPub curve25519.PublicKey, targetIndex uint32, skipped *SkippedCache) (MsgKey, error) {
	if targetIndex < chain.Index {
		return MsgKey{}, olmerr.ErrChainExhausted
	}
	if targetIndex-chain.Index > MaxMessageGap {
		return MsgKey{}, olmerr.ErrTooManySkippedKeys
	}
	for chain.Index < targetIndex {
		mk := chain.MessageKey()
		skipped.Put(SkippedKey{RatchetPub: ratchetPub, Index: mk.Index, Key: mk})
		chain.Advance()
	}
	mk := chain.MessageKey()
	chain.Advance()
	return mk, nil
}

// RootRatchetOutput is the 64-byte HKDF(root, dh, "OLM_ROOT"/"OLM_RATCHET")
// split into a new root key and a new chain key.
type RootRatchetOutput struct {
	RootKey  [32]byte
	ChainKey [32]byte
}

func kdfRoot(info string, root [32]byte, dhOut [32]byte) (RootRatchetOutput, error) {
	out, err := hkdf.Derive(root[:], dhOut[:], []byte(info), 64)
	if err != nil {
		return RootRatchetOutput{}, err
	}
	var r RootRatchetOutput
	copy(r.RootKey[:], out[0:32])
	copy(r.ChainKey[:], out[32:64])
	return r, nil
}

// InitialRootDerive computes RK, CK_send = HKDF(∅, dh, "OLM_ROOT", 64), the
// session-establishment root derivation of spec.md §4.5 step 4 (salt is
// empty, whereas later DH ratchet steps use the current root key as salt).
func InitialRootDerive(tripleDH []byte) (RootRatchetOutput, error) {
	out, err := hkdf.Derive(nil, tripleDH, []byte(hkdfInfoRoot), 64)
	if err != nil {
		return RootRatchetOutput{}, err
	}
	var r RootRatchetOutput
	copy(r.RootKey[:], out[0:32])
	copy(r.ChainKey[:], out[32:64])
	return r, nil
}

// DHRatchetStep advances the root ratchet once: secret = DH(priv, remotePub);
// newRoot, chainOut = HKDF(root, secret, "OLM_RATCHET", 64).
func DHRatchetStep(root [32]byte, priv curve25519.PrivateKey, remotePub curve25519.PublicKey) (RootRatchetOutput, error) {
	secret, err := curve25519.DH(priv, remotePub)
	if err != nil {
		return RootRatchetOutput{}, err
	}
	return kdfRoot(hkdfInfoRatchet, root, secret)
}

// AdvanceSenderDH performs the sender-side full DH ratchet advance of
// spec.md §4.4: first it folds in the already-known remote ratchet key
// using the *old* sender private key to derive the new receiving chain,
// then it generates a fresh sender key pair and folds that in against the
// same remote key to derive the new sending chain. Returns the final root
// key, the new receiving chain key, the new sender key pair and its chain key.
func AdvanceSenderDH(root [32]byte, oldSenderPriv curve25519.PrivateKey, remotePub curve25519.PublicKey, src entropy.Source) (newRoot [32]byte, recvChainKey [32]byte, newSender curve25519.KeyPair, sendChainKey [32]byte, err error) {
	step1, err := DHRatchetStep(root, oldSenderPriv, remotePub)
	if err != nil {
		return
	}
	newSender, err = curve25519.GenerateKeyPair(src)
	if err != nil {
		return
	}
	step2, err := DHRatchetStep(step1.RootKey, newSender.Private, remotePub)
	if err != nil {
		return
	}
	newRoot = step2.RootKey
	recvChainKey = step1.ChainKey
	sendChainKey = step2.ChainKey
	return
}
