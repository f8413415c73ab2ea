package x3dh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"veilchat/internal/crypto"
	"veilchat/internal/crypto/cryptotest"
	"veilchat/internal/domain"
	"veilchat/internal/protocol/x3dh"
)

// makeIdentity creates a domain.Identity with fresh X25519 and Ed25519 pairs.
func makeIdentity(t *testing.T, p crypto.Provider) domain.Identity {
	t.Helper()
	xPriv, xPub, err := p.GenerateKeyPair()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

// makeBundle builds bob's published bundle plus the private halves alice
// never sees.
func makeBundle(t *testing.T, p crypto.Provider, bob domain.Identity, withOPK bool) (domain.PreKeyBundle, domain.X25519Private, *domain.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := p.GenerateKeyPair()
	require.NoError(t, err)

	b := domain.PreKeyBundle{
		Username:              "bob",
		IdentityKey:           bob.XPub,
		SigningKey:            bob.EdPub,
		SignedPreKeyID:        "spk-test",
		SignedPreKey:          spkPub,
		SignedPreKeySignature: crypto.SignEd25519(bob.EdPriv, spkPub.Slice()),
	}

	var opkPriv *domain.X25519Private
	if withOPK {
		priv, pub, err := p.GenerateKeyPair()
		require.NoError(t, err)
		opkPriv = &priv
		b.OneTimePreKeys = []domain.OneTimePreKeyPublic{{ID: "opk-1", Pub: pub}}
	}
	return b, spkPriv, opkPriv
}

func TestInitiateAndRespond_NoOneTimePreKey(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice := makeIdentity(t, p)
	bob := makeIdentity(t, p)
	bundle, spkPriv, _ := makeBundle(t, p, bob, false)

	agreed, err := x3dh.Initiate(p, alice, bundle)
	require.NoError(t, err)
	require.Len(t, agreed.RootKey, 32)
	require.Equal(t, domain.SignedPreKeyID("spk-test"), agreed.SignedPreKeyID)
	require.Empty(t, agreed.OneTimePreKeyID)

	pm := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         agreed.EphemeralKey,
		SignedPreKeyID:       agreed.SignedPreKeyID,
	}
	root, err := x3dh.Respond(p, bob, spkPriv, nil, pm)
	require.NoError(t, err)
	require.Equal(t, agreed.RootKey, root, "initiator and responder must derive the same secret")
}

func TestInitiateAndRespond_WithOneTimePreKey(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice := makeIdentity(t, p)
	bob := makeIdentity(t, p)
	bundle, spkPriv, opkPriv := makeBundle(t, p, bob, true)

	agreed, err := x3dh.Initiate(p, alice, bundle)
	require.NoError(t, err)
	require.Equal(t, domain.OneTimePreKeyID("opk-1"), agreed.OneTimePreKeyID)

	pm := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         agreed.EphemeralKey,
		SignedPreKeyID:       agreed.SignedPreKeyID,
		OneTimePreKeyID:      agreed.OneTimePreKeyID,
	}
	root, err := x3dh.Respond(p, bob, spkPriv, opkPriv, pm)
	require.NoError(t, err)
	require.Equal(t, agreed.RootKey, root)

	// Dropping the OPK from the derivation must change the secret.
	pmNoOPK := pm
	pmNoOPK.OneTimePreKeyID = ""
	rootNoOPK, err := x3dh.Respond(p, bob, spkPriv, nil, pmNoOPK)
	require.NoError(t, err)
	require.NotEqual(t, root, rootNoOPK)
}

func TestInitiate_BadSignatureFailsClosed(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice := makeIdentity(t, p)
	bob := makeIdentity(t, p)
	bundle, _, _ := makeBundle(t, p, bob, false)

	bundle.SignedPreKeySignature[0] ^= 0x01
	_, err := x3dh.Initiate(p, alice, bundle)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRespond_MissingReferencedOPK(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice := makeIdentity(t, p)
	bob := makeIdentity(t, p)
	bundle, spkPriv, _ := makeBundle(t, p, bob, true)

	agreed, err := x3dh.Initiate(p, alice, bundle)
	require.NoError(t, err)

	pm := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         agreed.EphemeralKey,
		SignedPreKeyID:       agreed.SignedPreKeyID,
		OneTimePreKeyID:      agreed.OneTimePreKeyID,
	}
	_, err = x3dh.Respond(p, bob, spkPriv, nil, pm)
	require.ErrorIs(t, err, domain.ErrRatchetState)
}
