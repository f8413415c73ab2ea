package prekey_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"veilchat/internal/crypto"
	"veilchat/internal/crypto/cryptotest"
	"veilchat/internal/domain"
	"veilchat/internal/services/identity"
	"veilchat/internal/services/prekey"
	"veilchat/internal/store"
)

const passphrase = "Tr0ub4dor-&-3lephant"

func newFixture(t *testing.T) (*prekey.Service, domain.Identity) {
	t.Helper()
	dir := t.TempDir()
	p := cryptotest.New(t.Name())

	ids := store.NewIdentityFileStore(dir)
	id, _, err := identity.New(ids, p).Generate(passphrase)
	require.NoError(t, err)

	svc := prekey.New(ids, store.NewPreKeyFileStore(dir), store.NewBundleFileStore(dir), p)
	return svc, id
}

func TestGenerateAndStoreThenBundle(t *testing.T) {
	svc, id := newFixture(t)

	spkPub, opks, err := svc.GenerateAndStore(passphrase, 5)
	require.NoError(t, err)
	require.Len(t, opks, 5)

	b, err := svc.Bundle(passphrase, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.Username("bob"), b.Username)
	require.Equal(t, id.XPub, b.IdentityKey)
	require.Equal(t, spkPub, b.SignedPreKey)
	require.Len(t, b.OneTimePreKeys, 5)

	// Anyone holding the bundle can check the prekey signature.
	require.True(t, crypto.VerifyEd25519(b.SigningKey, b.SignedPreKey.Slice(), b.SignedPreKeySignature))
}

func TestBundleWithoutPreKeys(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.Bundle(passphrase, "bob")
	require.ErrorIs(t, err, prekey.ErrNoSignedPreKey)
}

func TestRotationReplacesCurrentSignedPreKey(t *testing.T) {
	svc, _ := newFixture(t)

	first, _, err := svc.GenerateAndStore(passphrase, 1)
	require.NoError(t, err)
	second, _, err := svc.GenerateAndStore(passphrase, 1)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	b, err := svc.Bundle(passphrase, "bob")
	require.NoError(t, err)
	require.Equal(t, second, b.SignedPreKey)

	// One-time prekeys accumulate across batches.
	require.Len(t, b.OneTimePreKeys, 2)
}
