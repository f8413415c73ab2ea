package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
	"veilchat/internal/protocol/ratchet"
	"veilchat/internal/protocol/x3dh"
)

// ErrNoSession indicates there is no stored session with the peer.
var ErrNoSession = fmt.Errorf("no session with peer; establish one first: %w", domain.ErrSessionNotFound)

// Service sends and receives messages over the relay using Double Ratchet.
//
// High-level flow:
//   - Send: if no conversation exists, initialise the ratchet from the stored
//     session and attach a PreKeyMessage so the receiver can bootstrap; then
//     encrypt, persist the advanced state, and only then hand the envelope to
//     the relay.
//   - Receive: fetch envelopes, bootstrap a responder session on the first
//     message from a peer, decrypt, persist, then ack exactly the processed
//     count.
//
// All mutating work on one peer's ratchet state runs under that peer's lock;
// work on distinct peers proceeds in parallel.
type Service struct {
	ids      domain.IdentityStore
	prekeys  domain.PreKeyStore
	sessions domain.SessionStore
	convs    domain.ConversationStore
	relay    domain.RelayClient
	provider crypto.Provider

	mu    sync.Mutex
	locks map[domain.Username]*sync.Mutex
}

// New constructs a message service with the given stores and relay client.
func New(
	ids domain.IdentityStore,
	prekeys domain.PreKeyStore,
	sessions domain.SessionStore,
	convs domain.ConversationStore,
	relay domain.RelayClient,
	p crypto.Provider,
) *Service {
	return &Service{
		ids:      ids,
		prekeys:  prekeys,
		sessions: sessions,
		convs:    convs,
		relay:    relay,
		provider: p,
		locks:    make(map[domain.Username]*sync.Mutex),
	}
}

// peerLock returns the mutex serialising all ratchet mutations for peer.
func (s *Service) peerLock(peer domain.Username) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[peer]
	if !ok {
		l = &sync.Mutex{}
		s.locks[peer] = l
	}
	return l
}

// associatedData binds sender and recipient into every message.
func associatedData(from, to domain.Username) []byte {
	return []byte(string(from) + ">" + string(to))
}

// Send encrypts and posts plaintext to the peer.
//
// The first message of a conversation initialises the ratchet from the
// stored session; the initiator keeps attaching its PreKeyMessage until the
// peer's first reply arrives, so a lost or reordered opening message cannot
// strand the handshake. The advanced ratchet state is durably saved before
// the envelope reaches the relay.
func (s *Service) Send(ctx context.Context, passphrase string, from, to domain.Username, plaintext []byte) error {
	l := s.peerLock(to)
	l.Lock()
	defer l.Unlock()

	sess, ok, err := s.sessions.LoadSession(to)
	if err != nil {
		return err
	}
	if !ok || !sess.Established {
		return ErrNoSession
	}

	conv, found, err := s.convs.LoadConversation(to)
	if err != nil {
		return err
	}
	if !found {
		st, err := ratchet.InitInitiator(s.provider, sess.RootKey, sess.PeerSignedPreKey)
		if err != nil {
			return err
		}
		conv = domain.Conversation{Peer: to, Initiator: true, State: st}
	}

	var prekey *domain.PreKeyMessage
	if conv.Initiator && len(conv.State.CKr) == 0 {
		// No reply yet: repeat the handshake material.
		id, err := s.ids.LoadIdentity(passphrase)
		if err != nil {
			return err
		}
		prekey = &domain.PreKeyMessage{
			InitiatorIdentityKey: id.XPub,
			EphemeralKey:         sess.EphemeralKey,
			SignedPreKeyID:       sess.SignedPreKeyID,
			OneTimePreKeyID:      sess.OneTimePreKeyID,
		}
	}

	sealed, err := ratchet.Encrypt(s.provider, &conv.State, associatedData(from, to), plaintext)
	if err != nil {
		return err
	}

	// Persist the advanced state before any externally observable effect, so
	// a crash cannot leave transmitted ciphertext ahead of stored counters.
	if err := s.convs.SaveConversation(to, conv); err != nil {
		return err
	}

	return s.relay.Send(ctx, domain.Envelope{
		MessageID: uuid.NewString(),
		From:      from,
		To:        to,
		Sealed:    sealed,
		Prekey:    prekey,
		Timestamp: time.Now().Unix(),
	})
}

// Receive fetches pending envelopes and decrypts them in order.
//
// The first message from a new peer must carry a PreKeyMessage; the service
// runs the responder side of X3DH, consumes the referenced one-time prekey,
// and initialises the ratchet before decrypting. An envelope that can never
// decrypt (failed integrity, unusable ratchet state) is dropped and acked
// past, with the failure surfaced to the caller; any other failure stops
// processing and only the handled prefix is acked, leaving the rest queued.
func (s *Service) Receive(ctx context.Context, passphrase string, me domain.Username, limit int) ([]domain.DecryptedMessage, error) {
	envs, err := s.relay.Fetch(ctx, me, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DecryptedMessage, 0, len(envs))
	var failures []error
	processed := 0
	for _, env := range envs {
		msg, err := s.receiveOne(passphrase, me, env)
		if err != nil {
			if errors.Is(err, domain.ErrIntegrity) || errors.Is(err, domain.ErrRatchetState) {
				// Retrying cannot help; drop the envelope so it stops
				// blocking the mailbox.
				failures = append(failures, fmt.Errorf("dropped message %s from %q: %w", env.MessageID, env.From, err))
				processed++
				continue
			}
			// Transient: keep this envelope and everything behind it queued.
			failures = append(failures, err)
			break
		}
		out = append(out, msg)
		processed++
	}
	if err := s.ack(ctx, me, processed); err != nil {
		failures = append(failures, err)
	}
	return out, errors.Join(failures...)
}

func (s *Service) ack(ctx context.Context, me domain.Username, processed int) error {
	if processed == 0 {
		return nil
	}
	return s.relay.Ack(ctx, me, processed)
}

func (s *Service) receiveOne(passphrase string, me domain.Username, env domain.Envelope) (domain.DecryptedMessage, error) {
	l := s.peerLock(env.From)
	l.Lock()
	defer l.Unlock()

	conv, found, err := s.convs.LoadConversation(env.From)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}
	if !found {
		conv, err = s.bootstrapResponder(passphrase, env)
		if err != nil {
			return domain.DecryptedMessage{}, err
		}
		// The bootstrap consumed the one-time prekey; persist the fresh state
		// before decrypting so a forged copy of the first envelope cannot
		// strand the genuine one.
		if err := s.convs.SaveConversation(env.From, conv); err != nil {
			return domain.DecryptedMessage{}, err
		}
	}

	pt, err := ratchet.Decrypt(s.provider, &conv.State, associatedData(env.From, me), env.Sealed)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}

	if err := s.convs.SaveConversation(env.From, conv); err != nil {
		return domain.DecryptedMessage{}, err
	}
	return domain.DecryptedMessage{
		MessageID: env.MessageID,
		From:      env.From,
		To:        env.To,
		Plaintext: pt,
		Timestamp: env.Timestamp,
	}, nil
}

// bootstrapResponder runs the responder side of X3DH from the envelope's
// PreKeyMessage and persists the session record; the caller persists the
// fresh ratchet state before attempting the first decrypt.
func (s *Service) bootstrapResponder(passphrase string, env domain.Envelope) (domain.Conversation, error) {
	if env.Prekey == nil {
		return domain.Conversation{}, fmt.Errorf("first message from %q carries no prekey material: %w",
			env.From, domain.ErrSessionNotFound)
	}
	pm := *env.Prekey

	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.Conversation{}, err
	}

	spkPriv, spkPub, okSPK, err := s.loadSignedPreKey(pm.SignedPreKeyID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !okSPK {
		return domain.Conversation{}, fmt.Errorf("signed prekey %q not found: %w",
			pm.SignedPreKeyID, domain.ErrRatchetState)
	}

	var opkPriv *domain.X25519Private
	if pm.OneTimePreKeyID != "" {
		priv, _, okOPK, err := s.prekeys.ConsumeOneTimePreKey(pm.OneTimePreKeyID)
		if err != nil {
			return domain.Conversation{}, err
		}
		if okOPK {
			opkPriv = &priv
		}
	}

	root, err := x3dh.Respond(s.provider, id, spkPriv, opkPriv, pm)
	if err != nil {
		return domain.Conversation{}, err
	}

	st, err := ratchet.InitResponder(s.provider, root, spkPriv, spkPub)
	if err != nil {
		return domain.Conversation{}, err
	}

	sess := domain.Session{
		Peer:            env.From,
		RootKey:         root,
		PeerIdentityKey: pm.InitiatorIdentityKey,
		Established:     true,
		CreatedUTC:      time.Now().Unix(),
	}
	if err := s.sessions.SaveSession(env.From, sess); err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{Peer: env.From, State: st}, nil
}

func (s *Service) loadSignedPreKey(id domain.SignedPreKeyID) (domain.X25519Private, domain.X25519Public, bool, error) {
	if id == "" {
		return domain.X25519Private{}, domain.X25519Public{}, false, nil
	}
	priv, pub, _, ok, err := s.prekeys.LoadSignedPreKey(id)
	return priv, pub, ok, err
}

// Reset destroys session and ratchet state for peer. The next contact in
// either direction re-runs the handshake.
func (s *Service) Reset(peer domain.Username) error {
	l := s.peerLock(peer)
	l.Lock()
	defer l.Unlock()

	if err := s.sessions.DeleteSession(peer); err != nil {
		return err
	}
	return s.convs.DeleteConversation(peer)
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
