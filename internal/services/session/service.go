package session

import (
	"context"
	"time"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
	"veilchat/internal/protocol/x3dh"
)

// Service performs X3DH initiation and persists sessions.
//
// A session holds the shared root key and the handshake parameters needed to
// start a Double Ratchet conversation with a peer. The service fetches the
// peer's prekey bundle from the relay, runs X3DH as the initiator, and saves
// the result before handing it back.
type Service struct {
	ids      domain.IdentityStore
	bundles  domain.BundleStore
	sessions domain.SessionStore
	relay    domain.RelayClient
	provider crypto.Provider
}

// New constructs a session service with the given stores and relay client.
func New(
	ids domain.IdentityStore,
	bundles domain.BundleStore,
	sessions domain.SessionStore,
	relay domain.RelayClient,
	p crypto.Provider,
) *Service {
	return &Service{ids: ids, bundles: bundles, sessions: sessions, relay: relay, provider: p}
}

// Establish fetches the peer's bundle, runs the initiator side of X3DH and
// persists the resulting session. Established is set only after the
// handshake succeeds; a bad signed-prekey signature fails closed.
func (s *Service) Establish(ctx context.Context, passphrase string, peer domain.Username) (domain.Session, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.Session{}, err
	}

	bundle, err := s.relay.FetchBundle(ctx, peer)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.bundles.SaveBundle(bundle); err != nil {
		return domain.Session{}, err
	}

	agreed, err := x3dh.Initiate(s.provider, id, bundle)
	if err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{
		Peer:             peer,
		RootKey:          agreed.RootKey,
		PeerIdentityKey:  bundle.IdentityKey,
		PeerSignedPreKey: bundle.SignedPreKey,
		SignedPreKeyID:   agreed.SignedPreKeyID,
		OneTimePreKeyID:  agreed.OneTimePreKeyID,
		EphemeralKey:     agreed.EphemeralKey,
		Established:      true,
		CreatedUTC:       time.Now().Unix(),
	}
	if err := s.sessions.SaveSession(peer, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Get returns the stored session for peer, if any.
func (s *Service) Get(peer domain.Username) (domain.Session, bool, error) {
	return s.sessions.LoadSession(peer)
}

// Delete removes the stored session for peer.
func (s *Service) Delete(peer domain.Username) error {
	return s.sessions.DeleteSession(peer)
}

// List enumerates peers with stored sessions.
func (s *Service) List() ([]domain.Username, error) {
	return s.sessions.Sessions()
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
