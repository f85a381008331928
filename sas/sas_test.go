package sas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmcore/internal/testentropy"
)

func TestSASGenerateBytesSymmetry(t *testing.T) {
	alice, err := New(&testentropy.Counter{Seed: 1})
	require.NoError(t, err)
	bob, err := New(&testentropy.Counter{Seed: 2})
	require.NoError(t, err)

	require.NoError(t, alice.SetTheirKey(bob.GetPubkey()))
	require.NoError(t, bob.SetTheirKey(alice.GetPubkey()))

	aliceBytes, err := alice.GenerateBytes("MATRIX_KEY_VERIFICATION_SAS", 5)
	require.NoError(t, err)
	bobBytes, err := bob.GenerateBytes("MATRIX_KEY_VERIFICATION_SAS", 5)
	require.NoError(t, err)
	assert.Equal(t, aliceBytes, bobBytes)
}

func TestSASRequiresTheirKey(t *testing.T) {
	alice, err := New(&testentropy.Counter{Seed: 1})
	require.NoError(t, err)

	_, err = alice.GenerateBytes("info", 5)
	assert.Error(t, err)

	_, err = alice.CalculateMac("input", "info")
	assert.Error(t, err)
}

func TestCalculateMacVariantsAgreeBetweenParties(t *testing.T) {
	alice, err := New(&testentropy.Counter{Seed: 3})
	require.NoError(t, err)
	bob, err := New(&testentropy.Counter{Seed: 4})
	require.NoError(t, err)
	require.NoError(t, alice.SetTheirKey(bob.GetPubkey()))
	require.NoError(t, bob.SetTheirKey(alice.GetPubkey()))

	aliceMac, err := alice.CalculateMac("commitment", "info")
	require.NoError(t, err)
	bobMac, err := bob.CalculateMac("commitment", "info")
	require.NoError(t, err)
	assert.Equal(t, aliceMac, bobMac)

	aliceLong, err := alice.CalculateMacLongKdf("commitment", "info")
	require.NoError(t, err)
	bobLong, err := bob.CalculateMacLongKdf("commitment", "info")
	require.NoError(t, err)
	assert.Equal(t, aliceLong, bobLong)
	assert.NotEqual(t, aliceMac, aliceLong)

	aliceFixed, err := alice.CalculateMacFixedBase64("commitment", "info")
	require.NoError(t, err)
	bobFixed, err := bob.CalculateMacFixedBase64("commitment", "info")
	require.NoError(t, err)
	assert.Equal(t, aliceFixed, bobFixed)
}
