// Package account implements the Olm account (C6): the long-lived identity
// key pair, the one-time-key pool and the fallback-key grace slot that a
// Session's inbound handshake consumes from. Field shape follows the
// teacher's client-side key bookkeeping in cmd/gen_keys and client/, which
// kept an identity pair plus a map of named pre-keys; this generalizes that
// into the full pool-with-eviction, fallback-rotation model spec.md §4.6
// describes.
package account

import (
	"encoding/json"

	"olmcore/crypto/ct"
	"olmcore/crypto/curve25519"
	"olmcore/crypto/ed25519"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
	"olmcore/session"
)

// MaxOneTimeKeys is the fixed ceiling on the unpublished one-time-key pool
// (spec.md §4.6). The reference corpus value is carried forward verbatim.
const MaxOneTimeKeys = 50

// oneTimeKey is one entry of the pool: a Curve25519 pair tagged with a
// monotonic id and a published flag.
type oneTimeKey struct {
	ID        uint32
	Key       curve25519.KeyPair
	Published bool
}

// Account is a long-lived Olm identity: its Ed25519 and Curve25519 identity
// pairs, its one-time-key pool, and its fallback-key grace slot.
type Account struct {
	Curve25519 curve25519.KeyPair
	Ed25519    ed25519.KeyPair

	nextOneTimeKeyID uint32
	oneTimeKeys      []oneTimeKey

	fallbackCurrent   *curve25519.KeyPair
	fallbackPrevious  *curve25519.KeyPair
	fallbackPublished bool
}

// Create generates a fresh account: independent Ed25519 and Curve25519
// identity pairs (spec.md §4.6 notes the reference keeps both halves
// independently generated rather than derived from one seed).
func Create(src entropy.Source) (*Account, error) {
	curve, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return nil, err
	}
	ed, err := ed25519.GenerateKeyPair(src)
	if err != nil {
		return nil, err
	}
	// One-time-key ids start at 1 so that 0 is free to use as the
	// "consumed the fallback key, not a pool key" sentinel in
	// RemoveOneTimeKeys/ConsumedOneTimeKeyID.
	return &Account{Curve25519: curve, Ed25519: ed, nextOneTimeKeyID: 1}, nil
}

// Identity returns the session.Identity view of this account's keys.
func (a *Account) Identity() session.Identity {
	return session.Identity{Curve25519: a.Curve25519, Ed25519: a.Ed25519}
}

// Sign produces an Ed25519 signature over msg under the account's identity key.
func (a *Account) Sign(msg []byte) [ed25519.SignatureSize]byte {
	return ed25519.Sign(a.Ed25519.Private, msg)
}

// IdentityKeysJSON renders {"curve25519":"<b64>","ed25519":"<b64>"}, unpadded
// base64, with no whitespace, per spec.md §6.
func (a *Account) IdentityKeysJSON() ([]byte, error) {
	return json.Marshal(struct {
		Curve25519 string `json:"curve25519"`
		Ed25519    string `json:"ed25519"`
	}{
		Curve25519: b64(a.Curve25519.Public[:]),
		Ed25519:    b64(a.Ed25519.Public[:]),
	})
}

// GenerateOneTimeKeys creates n fresh Curve25519 pairs with new ids, marked
// unpublished. If the unpublished pool would exceed MaxOneTimeKeys, the
// oldest unpublished keys are evicted first to make room.
func (a *Account) GenerateOneTimeKeys(n int, src entropy.Source) error {
	fresh := make([]oneTimeKey, 0, n)
	for i := 0; i < n; i++ {
		kp, err := curve25519.GenerateKeyPair(src)
		if err != nil {
			return err
		}
		fresh = append(fresh, oneTimeKey{ID: a.nextOneTimeKeyID, Key: kp, Published: false})
		a.nextOneTimeKeyID++
	}
	a.oneTimeKeys = append(a.oneTimeKeys, fresh...)
	a.evictOldestUnpublished()
	return nil
}

func (a *Account) evictOldestUnpublished() {
	unpublished := 0
	for _, k := range a.oneTimeKeys {
		if !k.Published {
			unpublished++
		}
	}
	for unpublished > MaxOneTimeKeys {
		for i, k := range a.oneTimeKeys {
			if !k.Published {
				a.oneTimeKeys = append(a.oneTimeKeys[:i], a.oneTimeKeys[i+1:]...)
				unpublished--
				break
			}
		}
	}
}

// OneTimeKeysJSON renders {"curve25519":{"<id>":"<b64>",...}} over every
// unpublished one-time key, unpadded base64, per spec.md §6.
func (a *Account) OneTimeKeysJSON() ([]byte, error) {
	keys := make(map[string]string)
	for _, k := range a.oneTimeKeys {
		if !k.Published {
			keys[idString(k.ID)] = b64(k.Key.Public[:])
		}
	}
	return json.Marshal(struct {
		Curve25519 map[string]string `json:"curve25519"`
	}{Curve25519: keys})
}

// MarkKeysAsPublished flips every unpublished one-time key, and the current
// fallback key if set, to published.
func (a *Account) MarkKeysAsPublished() {
	for i := range a.oneTimeKeys {
		a.oneTimeKeys[i].Published = true
	}
	if a.fallbackCurrent != nil {
		a.fallbackPublished = true
	}
}

// GenerateFallbackKey rotates the fallback slot: the previous current
// fallback (if any) becomes the accepted-but-retired previous slot, and a
// fresh unpublished Curve25519 pair becomes current.
func (a *Account) GenerateFallbackKey(src entropy.Source) error {
	kp, err := curve25519.GenerateKeyPair(src)
	if err != nil {
		return err
	}
	a.fallbackPrevious = a.fallbackCurrent
	current := kp
	a.fallbackCurrent = &current
	a.fallbackPublished = false
	return nil
}

// ForgetOldFallbackKey erases the previous fallback slot, ending the grace
// period in which messages encrypted against it are still accepted.
func (a *Account) ForgetOldFallbackKey() {
	a.fallbackPrevious = nil
}

// FallbackKeyJSON renders the current fallback key, published or not, in
// the same shape as OneTimeKeysJSON (a single-entry map keyed "1" matching
// libolm's convention of a synthetic id for the fallback slot).
func (a *Account) FallbackKeyJSON() ([]byte, error) {
	keys := make(map[string]string)
	if a.fallbackCurrent != nil {
		keys["1"] = b64(a.fallbackCurrent.Public[:])
	}
	return json.Marshal(struct {
		Curve25519 map[string]string `json:"curve25519"`
	}{Curve25519: keys})
}

// UnpublishedFallbackKeyJSON renders FallbackKeyJSON only if the current
// fallback key has not yet been marked published, and an empty map otherwise.
func (a *Account) UnpublishedFallbackKeyJSON() ([]byte, error) {
	if a.fallbackCurrent == nil || a.fallbackPublished {
		return json.Marshal(struct {
			Curve25519 map[string]string `json:"curve25519"`
		}{Curve25519: map[string]string{}})
	}
	return a.FallbackKeyJSON()
}

// MaxNumberOfOneTimeKeys returns the fixed one-time-key pool ceiling.
func (a *Account) MaxNumberOfOneTimeKeys() int { return MaxOneTimeKeys }

// Find implements session.OneTimeKeyLookup: it looks up pub by constant-time
// comparison against every stored one-time and fallback key, per spec.md
// §4.5 step 1 (lookup must not leak which key matched via timing, and a
// plain id-indexed map would do exactly that).
func (a *Account) Find(pub curve25519.PublicKey) (curve25519.PrivateKey, uint32, error) {
	for _, k := range a.oneTimeKeys {
		if ct.Equal(k.Key.Public[:], pub[:]) {
			return k.Key.Private, k.ID, nil
		}
	}
	if a.fallbackCurrent != nil && ct.Equal(a.fallbackCurrent.Public[:], pub[:]) {
		return a.fallbackCurrent.Private, 0, nil
	}
	if a.fallbackPrevious != nil && ct.Equal(a.fallbackPrevious.Public[:], pub[:]) {
		return a.fallbackPrevious.Private, 0, nil
	}
	return curve25519.PrivateKey{}, 0, olmerr.ErrBadMessageKeyID
}

// Close zeroizes every private key this account holds: the identity pairs,
// the whole one-time-key pool and both fallback slots. Call it once the
// account has been pickled and is no longer needed in memory.
func (a *Account) Close() {
	zeroize.Bytes(a.Curve25519.Private[:])
	zeroize.Bytes(a.Ed25519.Private[:])
	for i := range a.oneTimeKeys {
		zeroize.Bytes(a.oneTimeKeys[i].Key.Private[:])
	}
	if a.fallbackCurrent != nil {
		zeroize.Bytes(a.fallbackCurrent.Private[:])
	}
	if a.fallbackPrevious != nil {
		zeroize.Bytes(a.fallbackPrevious.Private[:])
	}
}

// RemoveOneTimeKeys deletes the one-time key that sess's inbound handshake
// consumed. A session whose consumed key was the fallback key (id 0, never
// present in the pool) is a no-op: the fallback key is retired only by
// GenerateFallbackKey/ForgetOldFallbackKey, never implicitly.
func (a *Account) RemoveOneTimeKeys(sess *session.Session) error {
	id, ok := sess.ConsumedOneTimeKeyID()
	if !ok {
		return nil
	}
	for i, k := range a.oneTimeKeys {
		if k.ID == id {
			a.oneTimeKeys = append(a.oneTimeKeys[:i], a.oneTimeKeys[i+1:]...)
			return nil
		}
	}
	return nil
}
