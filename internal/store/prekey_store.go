package store

import (
	"path/filepath"
	"sync"
	"time"

	"veilchat/internal/domain"
)

const (
	spkPairsFile   = "spk_pairs.json"
	opkPairsFile   = "opk_pairs.json"
	prekeyMetaFile = "prekey_meta.json"
)

// PreKeyFileStore persists signed and one-time prekey pairs to disk.
type PreKeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPreKeyFileStore returns a PreKeyFileStore rooted at dir.
func NewPreKeyFileStore(dir string) *PreKeyFileStore {
	return &PreKeyFileStore{dir: dir}
}

type spkPair struct {
	Priv [32]byte `json:"priv"`
	Pub  [32]byte `json:"pub"`
	Sig  []byte   `json:"sig"`
	At   int64    `json:"at"`
}

type opkPair struct {
	Priv [32]byte `json:"priv"`
	Pub  [32]byte `json:"pub"`
	At   int64    `json:"at"`
}

type prekeyMeta struct {
	CurrentSignedPreKeyID domain.SignedPreKeyID `json:"current_signed_pre_key_id"`
}

// SaveSignedPreKey stores a signed prekey pair under id.
func (s *PreKeyFileStore) SaveSignedPreKey(id domain.SignedPreKeyID, priv domain.X25519Private, pub domain.X25519Public, sig []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := make(map[domain.SignedPreKeyID]spkPair)
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[id] = spkPair{Priv: priv, Pub: pub, Sig: append([]byte(nil), sig...), At: time.Now().Unix()}
	return writeJSON(path, m, 0o600)
}

// LoadSignedPreKey returns the pair stored under id, if present.
func (s *PreKeyFileStore) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.X25519Private, domain.X25519Public, []byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[domain.SignedPreKeyID]spkPair)
	if err := readJSON(filepath.Join(s.dir, spkPairsFile), &m); err != nil {
		return domain.X25519Private{}, domain.X25519Public{}, nil, false, err
	}
	p, ok := m[id]
	if !ok {
		return domain.X25519Private{}, domain.X25519Public{}, nil, false, nil
	}
	return p.Priv, p.Pub, append([]byte(nil), p.Sig...), true, nil
}

// SetCurrentSignedPreKeyID marks id as the prekey to publish.
func (s *PreKeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, prekeyMetaFile), prekeyMeta{CurrentSignedPreKeyID: id}, 0o600)
}

// CurrentSignedPreKeyID returns the currently published prekey id.
func (s *PreKeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta prekeyMeta
	if err := readJSON(filepath.Join(s.dir, prekeyMetaFile), &meta); err != nil {
		return "", false, err
	}
	return meta.CurrentSignedPreKeyID, meta.CurrentSignedPreKeyID != "", nil
}

// SaveOneTimePreKeys stores a batch of one-time pairs.
func (s *PreKeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := make(map[domain.OneTimePreKeyID]opkPair)
	if err := readJSON(path, &m); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, p := range pairs {
		m[p.ID] = opkPair{Priv: p.Priv, Pub: p.Pub, At: now}
	}
	return writeJSON(path, m, 0o600)
}

// ConsumeOneTimePreKey removes and returns the pair under id. The removal is
// durable before the key material is handed out, so an id yields a key at
// most once.
func (s *PreKeyFileStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (domain.X25519Private, domain.X25519Public, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := make(map[domain.OneTimePreKeyID]opkPair)
	if err := readJSON(path, &m); err != nil {
		return domain.X25519Private{}, domain.X25519Public{}, false, err
	}
	p, ok := m[id]
	if !ok {
		return domain.X25519Private{}, domain.X25519Public{}, false, nil
	}
	delete(m, id)
	if err := writeJSON(path, m, 0o600); err != nil {
		return domain.X25519Private{}, domain.X25519Public{}, false, err
	}
	return p.Priv, p.Pub, true, nil
}

// ListOneTimePreKeys returns the remaining one-time publics.
func (s *PreKeyFileStore) ListOneTimePreKeys() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[domain.OneTimePreKeyID]opkPair)
	if err := readJSON(filepath.Join(s.dir, opkPairsFile), &m); err != nil {
		return nil, err
	}
	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
	}
	return out, nil
}

// Compile-time assertion that PreKeyFileStore implements domain.PreKeyStore.
var _ domain.PreKeyStore = (*PreKeyFileStore)(nil)
