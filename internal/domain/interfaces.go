package domain

import "context"

// IdentityStore persists the long-term identity, encrypted at rest.
type IdentityStore interface {
	SaveIdentity(passphrase string, id Identity) error
	LoadIdentity(passphrase string) (Identity, error)
}

// PreKeyStore persists signed and one-time prekey pairs. All mutations are
// durable before the call returns.
type PreKeyStore interface {
	SaveSignedPreKey(id SignedPreKeyID, priv X25519Private, pub X25519Public, sig []byte) error
	LoadSignedPreKey(id SignedPreKeyID) (X25519Private, X25519Public, []byte, bool, error)
	SetCurrentSignedPreKeyID(id SignedPreKeyID) error
	CurrentSignedPreKeyID() (SignedPreKeyID, bool, error)

	SaveOneTimePreKeys(pairs []OneTimePreKeyPair) error
	// ConsumeOneTimePreKey marks-and-removes atomically: a given id yields key
	// material at most once.
	ConsumeOneTimePreKey(id OneTimePreKeyID) (X25519Private, X25519Public, bool, error)
	ListOneTimePreKeys() ([]OneTimePreKeyPublic, error)
}

// BundleStore caches prekey bundles keyed by username.
type BundleStore interface {
	SaveBundle(b PreKeyBundle) error
	LoadBundle(username Username) (PreKeyBundle, bool, error)
}

// SessionStore persists established X3DH sessions. Saves commit atomically.
type SessionStore interface {
	SaveSession(peer Username, s Session) error
	LoadSession(peer Username) (Session, bool, error)
	DeleteSession(peer Username) error
	// Sessions enumerates peers with stored sessions, for maintenance jobs.
	Sessions() ([]Username, error)
}

// ConversationStore persists per-peer Double Ratchet state.
type ConversationStore interface {
	SaveConversation(peer Username, c Conversation) error
	LoadConversation(peer Username) (Conversation, bool, error)
	DeleteConversation(peer Username) error
}

// RelayClient talks to the bundle/mailbox relay. The E2EE core performs no
// network I/O itself; everything passes through this boundary.
type RelayClient interface {
	Register(ctx context.Context, b PreKeyBundle) error
	// FetchBundle returns the peer's bundle with at most one one-time prekey,
	// consumed server-side.
	FetchBundle(ctx context.Context, username Username) (PreKeyBundle, error)
	Send(ctx context.Context, env Envelope) error
	Fetch(ctx context.Context, username Username, limit int) ([]Envelope, error)
	Ack(ctx context.Context, username Username, count int) error
}

// IdentityService manages long-term identity key material.
type IdentityService interface {
	Generate(passphrase string) (Identity, Fingerprint, error)
	Load(passphrase string) (Identity, error)
	Fingerprint(passphrase string) (Fingerprint, error)
}

// PreKeyService manages prekey generation and bundle assembly.
type PreKeyService interface {
	GenerateAndStore(passphrase string, n int) (X25519Public, []X25519Public, error)
	Bundle(passphrase string, username Username) (PreKeyBundle, error)
}

// SessionService establishes and tracks X3DH sessions.
type SessionService interface {
	Establish(ctx context.Context, passphrase string, peer Username) (Session, error)
	Get(peer Username) (Session, bool, error)
	Delete(peer Username) error
	List() ([]Username, error)
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	Send(ctx context.Context, passphrase string, from, to Username, plaintext []byte) error
	Receive(ctx context.Context, passphrase string, me Username, limit int) ([]DecryptedMessage, error)
	// Reset destroys session and ratchet state for peer; the next contact
	// re-runs the handshake.
	Reset(peer Username) error
}
