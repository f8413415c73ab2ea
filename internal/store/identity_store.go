package store

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"veilchat/internal/domain"
)

const identityFile = "identity.enc"

// IdentityFileStore persists the long-term identity encrypted at rest.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir}
}

// SaveIdentity writes the identity encrypted under the passphrase. The file
// is fully written before the call returns.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return wrapStorage("encode identity", err)
	}
	blob, err := sealWithPassphrase(passphrase, raw)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, identityFile), blob, 0o600)
}

// LoadIdentity decrypts and returns the stored identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := readFile(filepath.Join(s.dir, identityFile))
	if err != nil {
		return domain.Identity{}, err
	}
	raw, err := openWithPassphrase(passphrase, blob)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, wrapStorage("decode identity", err)
	}
	return id, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
