package x3dh

import (
	"fmt"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
	"veilchat/internal/util/memzero"
)

// kdfInfo labels the shared-secret derivation.
const kdfInfo = "X3DH"

// Agreement is the handshake outcome. RootKey seeds the Double Ratchet; the
// remaining fields identify the prekeys used so the initiator can echo them
// in its first PreKeyMessage.
type Agreement struct {
	RootKey         []byte
	SignedPreKeyID  domain.SignedPreKeyID
	OneTimePreKeyID domain.OneTimePreKeyID
	EphemeralKey    domain.X25519Public
}

// Initiate runs the initiator side against a fetched bundle.
//
// It verifies the signed-prekey signature against the bundle's signing key,
// generates a fresh ephemeral pair, computes DH1..DH4 and derives the shared
// secret. The one-time prekey is used when the bundle carries one.
func Initiate(p crypto.Provider, id domain.Identity, bundle domain.PreKeyBundle) (Agreement, error) {
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		return Agreement{}, fmt.Errorf("signed prekey signature for %q: %w", bundle.Username, domain.ErrAuthentication)
	}

	ephPriv, ephPub, err := p.GenerateKeyPair()
	if err != nil {
		return Agreement{}, fmt.Errorf("ephemeral key: %w", domain.ErrKeyGeneration)
	}

	dh1, err := p.DH(id.XPriv, bundle.SignedPreKey) // DH(IK_A, SPK_B)
	if err != nil {
		return Agreement{}, err
	}
	dh2, err := p.DH(ephPriv, bundle.IdentityKey) // DH(EK_A, IK_B)
	if err != nil {
		return Agreement{}, err
	}
	dh3, err := p.DH(ephPriv, bundle.SignedPreKey) // DH(EK_A, SPK_B)
	if err != nil {
		return Agreement{}, err
	}

	concat := make([]byte, 0, 4*32)
	concat = append(concat, dh1...)
	concat = append(concat, dh2...)
	concat = append(concat, dh3...)

	var opkID domain.OneTimePreKeyID
	if len(bundle.OneTimePreKeys) > 0 {
		opk := bundle.OneTimePreKeys[0]
		dh4, err := p.DH(ephPriv, opk.Pub) // DH(EK_A, OPK_B)
		if err != nil {
			return Agreement{}, err
		}
		concat = append(concat, dh4...)
		opkID = opk.ID
	}

	root, err := deriveRoot(p, concat)
	if err != nil {
		return Agreement{}, err
	}
	return Agreement{
		RootKey:         root,
		SignedPreKeyID:  bundle.SignedPreKeyID,
		OneTimePreKeyID: opkID,
		EphemeralKey:    ephPub,
	}, nil
}

// Respond runs the responder side from a received PreKeyMessage, using the
// private halves of the signed prekey and, when referenced, the consumed
// one-time prekey. Given matching inputs it derives the same root key as
// Initiate.
func Respond(
	p crypto.Provider,
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	pm domain.PreKeyMessage,
) ([]byte, error) {
	dh1, err := p.DH(spkPriv, pm.InitiatorIdentityKey) // DH(SPK_B, IK_A)
	if err != nil {
		return nil, err
	}
	dh2, err := p.DH(id.XPriv, pm.EphemeralKey) // DH(IK_B, EK_A)
	if err != nil {
		return nil, err
	}
	dh3, err := p.DH(spkPriv, pm.EphemeralKey) // DH(SPK_B, EK_A)
	if err != nil {
		return nil, err
	}

	concat := make([]byte, 0, 4*32)
	concat = append(concat, dh1...)
	concat = append(concat, dh2...)
	concat = append(concat, dh3...)

	if pm.OneTimePreKeyID != "" {
		if opkPriv == nil {
			return nil, fmt.Errorf("one-time prekey %q referenced but unavailable: %w",
				pm.OneTimePreKeyID, domain.ErrRatchetState)
		}
		dh4, err := p.DH(*opkPriv, pm.EphemeralKey) // DH(OPK_B, EK_A)
		if err != nil {
			return nil, err
		}
		concat = append(concat, dh4...)
	}

	return deriveRoot(p, concat)
}

func deriveRoot(p crypto.Provider, concat []byte) ([]byte, error) {
	root, err := p.KDF(concat, nil, []byte(kdfInfo), 32)
	memzero.Zero(concat)
	if err != nil {
		return nil, err
	}
	return root, nil
}
