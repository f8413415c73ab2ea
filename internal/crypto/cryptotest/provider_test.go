package cryptotest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"veilchat/internal/crypto/cryptotest"
)

func TestDeterministicBySeed(t *testing.T) {
	a := cryptotest.New("seed")
	b := cryptotest.New("seed")

	ra, err := a.Random(48)
	require.NoError(t, err)
	rb, err := b.Random(48)
	require.NoError(t, err)
	require.Equal(t, ra, rb)

	privA, pubA, err := a.GenerateKeyPair()
	require.NoError(t, err)
	privB, pubB, err := b.GenerateKeyPair()
	require.NoError(t, err)
	require.Equal(t, privA, privB)
	require.Equal(t, pubA, pubB)
}

func TestSeedsDiverge(t *testing.T) {
	a := cryptotest.New("seed-one")
	b := cryptotest.New("seed-two")

	ra, err := a.Random(32)
	require.NoError(t, err)
	rb, err := b.Random(32)
	require.NoError(t, err)
	require.NotEqual(t, ra, rb)
}

func TestStreamAdvances(t *testing.T) {
	p := cryptotest.New("seed")

	first, err := p.Random(32)
	require.NoError(t, err)
	second, err := p.Random(32)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestKeyPairsUsableForDH(t *testing.T) {
	p := cryptotest.New("seed")

	aPriv, aPub, err := p.GenerateKeyPair()
	require.NoError(t, err)
	bPriv, bPub, err := p.GenerateKeyPair()
	require.NoError(t, err)

	ab, err := p.DH(aPriv, bPub)
	require.NoError(t, err)
	ba, err := p.DH(bPriv, aPub)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
}
