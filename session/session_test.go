package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmcore/crypto/curve25519"
	"olmcore/crypto/ed25519"
	"olmcore/internal/testentropy"
	"olmcore/message"
)

type fixedOneTimeKey struct {
	priv curve25519.PrivateKey
	pub  curve25519.PublicKey
}

func (f fixedOneTimeKey) Find(pub curve25519.PublicKey) (curve25519.PrivateKey, uint32, error) {
	return f.priv, 1, nil
}

func newIdentity(t *testing.T, seed byte) Identity {
	t.Helper()
	src := &testentropy.Counter{Seed: seed}
	curve, err := curve25519.GenerateKeyPair(src)
	require.NoError(t, err)
	ed, err := ed25519.GenerateKeyPair(src)
	require.NoError(t, err)
	return Identity{Curve25519: curve, Ed25519: ed}
}

func establishedPair(t *testing.T) (alice, bob *Session) {
	t.Helper()
	aliceID := newIdentity(t, 1)
	bobID := newIdentity(t, 2)

	srcBob := &testentropy.Counter{Seed: 40}
	bobOneTime, err := curve25519.GenerateKeyPair(srcBob)
	require.NoError(t, err)
	lookup := fixedOneTimeKey{priv: bobOneTime.Private, pub: bobOneTime.Public}

	srcAlice := &testentropy.Counter{Seed: 50}
	aliceSess, err := CreateOutbound(aliceID, bobID.Curve25519.Public, bobOneTime.Public, srcAlice)
	require.NoError(t, err)

	msgType, data, err := aliceSess.Encrypt([]byte("têst1"), srcAlice)
	require.NoError(t, err)
	require.Equal(t, message.TypePreKey, msgType)

	pre, err := message.DecodePreKey(data)
	require.NoError(t, err)

	bobSess, plaintext, err := CreateInbound(bobID, lookup, pre)
	require.NoError(t, err)
	assert.Equal(t, []byte("têst1"), plaintext)

	return aliceSess, bobSess
}

func TestHandshakeAndFirstMessageRoundTrip(t *testing.T) {
	alice, bob := establishedPair(t)
	assert.False(t, alice.HasReceivedMessage())
	assert.True(t, bob.HasReceivedMessage())
	assert.Equal(t, alice.SessionID(), bob.SessionID())
}

func TestReplyEstablishesBothSides(t *testing.T) {
	alice, bob := establishedPair(t)
	srcBob := &testentropy.Counter{Seed: 60}

	msgType, data, err := bob.Encrypt([]byte("hot beverage: ☕"), srcBob)
	require.NoError(t, err)
	require.Equal(t, message.TypeNormal, msgType)

	srcAlice := &testentropy.Counter{Seed: 70}
	plaintext, err := alice.Decrypt(msgType, data, srcAlice)
	require.NoError(t, err)
	assert.Equal(t, []byte("hot beverage: ☕"), plaintext)
	assert.True(t, alice.HasReceivedMessage())
}

func TestOutOfOrderDeliveryUsesSkippedCache(t *testing.T) {
	alice, bob := establishedPair(t)
	src := &testentropy.Counter{Seed: 80}

	// bootstrap alice's sender chain once via the reply, then send five
	// messages on it out of order.
	_, replyData, err := bob.Encrypt([]byte("reply"), &testentropy.Counter{Seed: 90})
	require.NoError(t, err)
	_, err = alice.Decrypt(message.TypeNormal, replyData, src)
	require.NoError(t, err)

	var ciphertexts [5][]byte
	var types [5]message.MessageType
	plaintexts := [5]string{"m0", "m1", "m2", "m3", "m4"}
	for i, pt := range plaintexts {
		typ, data, err := alice.Encrypt([]byte(pt), src)
		require.NoError(t, err)
		types[i] = typ
		ciphertexts[i] = data
	}

	order := []int{0, 3, 1, 4, 2}
	for _, i := range order {
		pt, err := bob.Decrypt(types[i], ciphertexts[i], src)
		require.NoError(t, err)
		assert.Equal(t, plaintexts[i], string(pt))
	}
}

func TestDHRatchetAdvanceProducesNewRatchetKey(t *testing.T) {
	alice, bob := establishedPair(t)
	src := &testentropy.Counter{Seed: 100}

	firstRatchet := alice.Sender.Ratchet.Public

	_, replyData, err := bob.Encrypt([]byte("trigger ratchet"), &testentropy.Counter{Seed: 110})
	require.NoError(t, err)
	_, err = alice.Decrypt(message.TypeNormal, replyData, src)
	require.NoError(t, err)

	_, _, err = alice.Encrypt([]byte("next"), src)
	require.NoError(t, err)

	assert.NotEqual(t, firstRatchet, alice.Sender.Ratchet.Public)
}

func TestDecryptFailsOnTamperedMac(t *testing.T) {
	alice, bob := establishedPair(t)
	src := &testentropy.Counter{Seed: 120}

	_, replyData, err := bob.Encrypt([]byte("reply"), src)
	require.NoError(t, err)
	replyData[len(replyData)-1] ^= 0xff

	_, err = alice.Decrypt(message.TypeNormal, replyData, src)
	assert.Error(t, err)
}

func TestPickleRoundTrip(t *testing.T) {
	alice, _ := establishedPair(t)
	key := []byte("session pickle key")

	blob, err := alice.Pickle(key)
	require.NoError(t, err)

	restored, err := Unpickle(key, blob)
	require.NoError(t, err)
	assert.Equal(t, alice.SessionID(), restored.SessionID())
	assert.Equal(t, alice.Sender, restored.Sender)
	assert.Equal(t, alice.Receivers, restored.Receivers)

	_, err = Unpickle([]byte("wrong key"), blob)
	assert.Error(t, err)
}
