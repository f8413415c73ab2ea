package domain

// Username identifies a participant as registered with the relay.
type Username string

// Fingerprint is a short hex digest of an identity public key.
type Fingerprint string

// SignedPreKeyID references a signed prekey pair in the local store.
type SignedPreKeyID string

// OneTimePreKeyID references a single-use prekey pair in the local store.
type OneTimePreKeyID string

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is a signing public key.
type Ed25519Public [32]byte

func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is a signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

func (k Ed25519Private) Slice() []byte { return k[:] }

// Identity holds the long-term keys stored locally. It is created once per
// user and never rotated silently.
type Identity struct {
	XPub   X25519Public
	XPriv  X25519Private
	EdPub  Ed25519Public
	EdPriv Ed25519Private
}

// OneTimePreKeyPair is a single-use prekey; consumed and removed after use.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID
	Pub  X25519Public
	Priv X25519Private
}

// OneTimePreKeyPublic is the published half of a one-time prekey.
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PreKeyBundle is published to and served by the relay. IDs let initiators
// reference the exact SPK/OPK they used.
type PreKeyBundle struct {
	Username              Username              `json:"username"`
	IdentityKey           X25519Public          `json:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}

// PreKeyMessage rides on the first messages from an initiator so the
// responder can run X3DH and initialise its ratchet.
type PreKeyMessage struct {
	InitiatorIdentityKey X25519Public    `json:"initiator_identity_key"`
	EphemeralKey         X25519Public    `json:"ephemeral_key"`
	SignedPreKeyID       SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
}

// Header is the plaintext form of a ratchet message header. On the wire it
// travels only encrypted under the current header key.
type Header struct {
	DHPub X25519Public
	PN    uint32
	N     uint32
}

// SealedMessage is the codec output: encrypted header, encrypted body, and a
// MAC over both.
type SealedMessage struct {
	EncHeader []byte `json:"enc_header"`
	Body      []byte `json:"body"`
	MAC       []byte `json:"mac"`
}

// Envelope is the wire unit carried by the relay.
type Envelope struct {
	MessageID string         `json:"message_id"`
	From      Username       `json:"from"`
	To        Username       `json:"to"`
	Sealed    SealedMessage  `json:"sealed"`
	Prekey    *PreKeyMessage `json:"prekey,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Session is the X3DH outcome: the shared secret plus the parameters the
// initiator must echo in its PreKeyMessage. Established is set only after a
// successful handshake.
type Session struct {
	Peer             Username        `json:"peer"`
	RootKey          []byte          `json:"root_key"`
	PeerIdentityKey  X25519Public    `json:"peer_identity_key"`
	PeerSignedPreKey X25519Public    `json:"peer_signed_pre_key"`
	SignedPreKeyID   SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID  OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
	EphemeralKey     X25519Public    `json:"ephemeral_key"`
	Established      bool            `json:"established"`
	CreatedUTC       int64           `json:"created_utc"`
}

// Conversation stores per-peer ratchet state. Initiator marks which side ran
// X3DH first; the initiator repeats its PreKeyMessage until the receiving
// chain comes alive, covering lost or reordered first messages.
type Conversation struct {
	Peer      Username     `json:"peer"`
	Initiator bool         `json:"initiator"`
	State     RatchetState `json:"state"`
}

// RatchetState holds Double Ratchet state for one conversation.
//
// Chain and root keys are only ever produced by one-way KDF steps. Counters
// are monotonic per direction and never reused. Operations on a state are
// NOT safe for concurrent use; callers serialise per conversation.
type RatchetState struct {
	RootKey []byte `json:"root_key"`

	DHPriv X25519Private `json:"dh_priv"`
	DHPub  X25519Public  `json:"dh_pub"`

	PeerDHPub X25519Public `json:"peer_dh_pub"`

	// Sending and receiving chain keys; empty until the respective chain is
	// seeded by an init or DH ratchet step.
	CKs []byte `json:"cks,omitempty"`
	CKr []byte `json:"ckr,omitempty"`

	// Header keys: current send/receive plus the next pair, which take over
	// at the following DH ratchet step.
	HKs  []byte `json:"hks,omitempty"`
	HKr  []byte `json:"hkr,omitempty"`
	NHKs []byte `json:"nhks,omitempty"`
	NHKr []byte `json:"nhkr,omitempty"`

	Ns uint32 `json:"ns"`
	Nr uint32 `json:"nr"`
	PN uint32 `json:"pn"`

	Skipped *SkippedKeys `json:"skipped"`

	Established bool `json:"established"`
}

// Clone deep-copies the state so a decrypt attempt can work on a scratch
// value and commit only on success.
func (s RatchetState) Clone() RatchetState {
	out := s
	out.RootKey = append([]byte(nil), s.RootKey...)
	out.CKs = append([]byte(nil), s.CKs...)
	out.CKr = append([]byte(nil), s.CKr...)
	out.HKs = append([]byte(nil), s.HKs...)
	out.HKr = append([]byte(nil), s.HKr...)
	out.NHKs = append([]byte(nil), s.NHKs...)
	out.NHKr = append([]byte(nil), s.NHKr...)
	if s.Skipped != nil {
		out.Skipped = s.Skipped.Clone()
	}
	return out
}

// DecryptedMessage is returned by MessageService.Receive.
type DecryptedMessage struct {
	MessageID string
	From      Username
	To        Username
	Plaintext []byte
	Timestamp int64
}
