package account

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmcore/internal/testentropy"
	"olmcore/message"
	"olmcore/session"
)

func TestCreateIdentityKeysJSON(t *testing.T) {
	src := &testentropy.Counter{Seed: 1}
	a, err := Create(src)
	require.NoError(t, err)

	raw, err := a.IdentityKeysJSON()
	require.NoError(t, err)

	var parsed struct {
		Curve25519 string `json:"curve25519"`
		Ed25519    string `json:"ed25519"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.NotEmpty(t, parsed.Curve25519)
	assert.NotEmpty(t, parsed.Ed25519)
}

func TestGenerateOneTimeKeysEvictsOldestUnpublished(t *testing.T) {
	src := &testentropy.Counter{Seed: 1}
	a, err := Create(src)
	require.NoError(t, err)

	require.NoError(t, a.GenerateOneTimeKeys(MaxOneTimeKeys+10, src))

	raw, err := a.OneTimeKeysJSON()
	require.NoError(t, err)
	var parsed struct {
		Curve25519 map[string]string `json:"curve25519"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Len(t, parsed.Curve25519, MaxOneTimeKeys)

	// the oldest ids (1..10) must have been evicted, the newest retained.
	_, hasOldest := parsed.Curve25519["1"]
	assert.False(t, hasOldest)
}

func TestMarkKeysAsPublishedEmptiesPool(t *testing.T) {
	src := &testentropy.Counter{Seed: 1}
	a, err := Create(src)
	require.NoError(t, err)
	require.NoError(t, a.GenerateOneTimeKeys(5, src))

	a.MarkKeysAsPublished()

	raw, err := a.OneTimeKeysJSON()
	require.NoError(t, err)
	var parsed struct {
		Curve25519 map[string]string `json:"curve25519"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Empty(t, parsed.Curve25519)
}

func TestFallbackKeyRotationAndGrace(t *testing.T) {
	src := &testentropy.Counter{Seed: 3}
	a, err := Create(src)
	require.NoError(t, err)

	require.NoError(t, a.GenerateFallbackKey(src))
	firstCurrent := *a.fallbackCurrent

	require.NoError(t, a.GenerateFallbackKey(src))
	assert.Equal(t, firstCurrent, *a.fallbackPrevious, "previous rotation's current becomes the new previous")
	assert.NotEqual(t, firstCurrent.Public, a.fallbackCurrent.Public)

	// both current and previous are found until ForgetOldFallbackKey.
	_, _, err = a.Find(firstCurrent.Public)
	assert.NoError(t, err)

	a.ForgetOldFallbackKey()
	_, _, err = a.Find(firstCurrent.Public)
	assert.Error(t, err)
}

func TestUnpublishedFallbackKeyJSONHidesAfterPublish(t *testing.T) {
	src := &testentropy.Counter{Seed: 4}
	a, err := Create(src)
	require.NoError(t, err)
	require.NoError(t, a.GenerateFallbackKey(src))

	raw, err := a.UnpublishedFallbackKeyJSON()
	require.NoError(t, err)
	var parsed struct {
		Curve25519 map[string]string `json:"curve25519"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Len(t, parsed.Curve25519, 1)

	a.MarkKeysAsPublished()
	raw, err = a.UnpublishedFallbackKeyJSON()
	require.NoError(t, err)
	// json.Unmarshal keeps existing entries of a non-nil map, so reset it.
	parsed.Curve25519 = nil
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Empty(t, parsed.Curve25519)
}

func TestRemoveOneTimeKeysDeletesConsumedKey(t *testing.T) {
	srcBob := &testentropy.Counter{Seed: 10}
	bob, err := Create(srcBob)
	require.NoError(t, err)
	require.NoError(t, bob.GenerateOneTimeKeys(1, srcBob))

	srcAlice := &testentropy.Counter{Seed: 20}
	alice, err := Create(srcAlice)
	require.NoError(t, err)

	bobOneTimePub := bob.oneTimeKeys[0].Key.Public
	outbound, err := session.CreateOutbound(alice.Identity(), bob.Curve25519.Public, bobOneTimePub, srcAlice)
	require.NoError(t, err)

	msgType, data, err := outbound.Encrypt([]byte("hi"), srcAlice)
	require.NoError(t, err)
	require.Equal(t, message.TypePreKey, msgType)

	pre, err := message.DecodePreKey(data)
	require.NoError(t, err)

	inbound, plaintext, err := session.CreateInbound(bob.Identity(), bob, pre)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), plaintext)

	require.NoError(t, bob.RemoveOneTimeKeys(inbound))

	raw, err := bob.OneTimeKeysJSON()
	require.NoError(t, err)
	var parsed struct {
		Curve25519 map[string]string `json:"curve25519"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Empty(t, parsed.Curve25519)
}

func TestPickleRoundTrip(t *testing.T) {
	src := &testentropy.Counter{Seed: 7}
	a, err := Create(src)
	require.NoError(t, err)
	require.NoError(t, a.GenerateOneTimeKeys(3, src))
	require.NoError(t, a.GenerateFallbackKey(src))

	key := []byte("pickle passphrase")
	blob, err := a.Pickle(key)
	require.NoError(t, err)

	restored, err := Unpickle(key, blob)
	require.NoError(t, err)
	assert.Equal(t, a.Curve25519, restored.Curve25519)
	assert.Equal(t, a.Ed25519, restored.Ed25519)
	assert.Equal(t, a.oneTimeKeys, restored.oneTimeKeys)
	assert.Equal(t, *a.fallbackCurrent, *restored.fallbackCurrent)

	_, err = Unpickle([]byte("wrong passphrase"), blob)
	assert.Error(t, err)
}
