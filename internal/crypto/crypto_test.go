package crypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
)

func TestDHAgreement(t *testing.T) {
	p := crypto.Default

	aPriv, aPub, err := p.GenerateKeyPair()
	require.NoError(t, err)
	bPriv, bPub, err := p.GenerateKeyPair()
	require.NoError(t, err)

	ab, err := p.DH(aPriv, bPub)
	require.NoError(t, err)
	ba, err := p.DH(bPriv, aPub)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Len(t, ab, 32)
}

func TestKDFDomainSeparation(t *testing.T) {
	p := crypto.Default
	ikm := bytes.Repeat([]byte{0x01}, 32)

	a, err := p.KDF(ikm, nil, []byte("label-a"), 32)
	require.NoError(t, err)
	b, err := p.KDF(ikm, nil, []byte("label-b"), 32)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "distinct labels must separate outputs")

	again, err := p.KDF(ikm, nil, []byte("label-a"), 32)
	require.NoError(t, err)
	require.Equal(t, a, again)
}

func TestSealOpen(t *testing.T) {
	p := crypto.Default
	key := bytes.Repeat([]byte{0x02}, crypto.KeySize)
	nonce := bytes.Repeat([]byte{0x03}, crypto.NonceSize)
	ad := []byte("bound")

	ct, err := p.Seal(key, nonce, ad, []byte("secret"))
	require.NoError(t, err)

	pt, err := p.Open(key, nonce, ad, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), pt)

	ct[0] ^= 0x01
	_, err = p.Open(key, nonce, ad, ct)
	require.ErrorIs(t, err, domain.ErrIntegrity)
	ct[0] ^= 0x01

	_, err = p.Open(key, nonce, []byte("other"), ct)
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestSignAndVerifyEd25519(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	msg := []byte("signed prekey bytes")
	sig := crypto.SignEd25519(priv, msg)
	require.True(t, crypto.VerifyEd25519(pub, msg, sig))

	sig[0] ^= 0x01
	require.False(t, crypto.VerifyEd25519(pub, msg, sig))
	sig[0] ^= 0x01
	require.False(t, crypto.VerifyEd25519(pub, []byte("different"), sig))
}

func TestFingerprintStable(t *testing.T) {
	key := bytes.Repeat([]byte{0x04}, 32)

	a := crypto.Fingerprint(key)
	b := crypto.Fingerprint(key)
	require.Equal(t, a, b)
	require.Len(t, a, 20, "10 bytes, hex encoded")

	other := bytes.Repeat([]byte{0x05}, 32)
	require.NotEqual(t, a, crypto.Fingerprint(other))
}
