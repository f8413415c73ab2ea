package prekey

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
)

// ErrNoSignedPreKey is returned when no current signed prekey exists.
var ErrNoSignedPreKey = errors.New("no signed prekey available")

// Service manages prekey pairs and builds the public bundle.
type Service struct {
	ids      domain.IdentityStore
	prekeys  domain.PreKeyStore
	bundles  domain.BundleStore
	provider crypto.Provider
}

// New constructs a prekey service over the given stores and provider.
func New(ids domain.IdentityStore, pks domain.PreKeyStore, bs domain.BundleStore, p crypto.Provider) *Service {
	return &Service{ids: ids, prekeys: pks, bundles: bs, provider: p}
}

// GenerateAndStore creates a signed prekey pair and n one-time pairs, marks
// the new signed prekey as current, and persists everything before
// returning. IDs are unique uuids so batches never collide.
func (s *Service) GenerateAndStore(passphrase string, n int) (domain.X25519Public, []domain.X25519Public, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}

	spkPriv, spkPub, err := s.provider.GenerateKeyPair()
	if err != nil {
		return domain.X25519Public{}, nil, fmt.Errorf("signed prekey: %w", domain.ErrKeyGeneration)
	}
	spkID := domain.SignedPreKeyID("spk-" + uuid.NewString())
	sig := crypto.SignEd25519(id.EdPriv, spkPub.Slice())
	if err := s.prekeys.SaveSignedPreKey(spkID, spkPriv, spkPub, sig); err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.prekeys.SetCurrentSignedPreKeyID(spkID); err != nil {
		return domain.X25519Public{}, nil, err
	}

	pairs := make([]domain.OneTimePreKeyPair, 0, n)
	publics := make([]domain.X25519Public, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := s.provider.GenerateKeyPair()
		if err != nil {
			return domain.X25519Public{}, nil, fmt.Errorf("one-time prekey: %w", domain.ErrKeyGeneration)
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID("opk-" + uuid.NewString()),
			Pub:  pub,
			Priv: priv,
		})
		publics = append(publics, pub)
	}
	if err := s.prekeys.SaveOneTimePreKeys(pairs); err != nil {
		return domain.X25519Public{}, nil, err
	}
	return spkPub, publics, nil
}

// Bundle builds the public bundle from the current signed prekey and the
// remaining one-time publics, caches it, and returns it.
func (s *Service) Bundle(passphrase string, username domain.Username) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, ok, err := s.prekeys.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}
	_, spkPub, sig, found, err := s.prekeys.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !found {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}

	oneTime, err := s.prekeys.ListOneTimePreKeys()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	b := domain.PreKeyBundle{
		Username:              username,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
		OneTimePreKeys:        oneTime,
	}
	if err := s.bundles.SaveBundle(b); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return b, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
