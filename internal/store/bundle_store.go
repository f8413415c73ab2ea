package store

import (
	"path/filepath"
	"sync"

	"veilchat/internal/domain"
)

const bundlesFile = "bundles.json"

// BundleFileStore caches prekey bundles keyed by username: the last bundle
// we registered, plus bundles fetched for peers.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SaveBundle writes the bundle to the cache.
func (s *BundleFileStore) SaveBundle(b domain.PreKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, bundlesFile)
	m := make(map[domain.Username]domain.PreKeyBundle)
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[b.Username] = b
	return writeJSON(path, m, 0o600)
}

// LoadBundle returns the cached bundle for username, if present.
func (s *BundleFileStore) LoadBundle(username domain.Username) (domain.PreKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[domain.Username]domain.PreKeyBundle)
	if err := readJSON(filepath.Join(s.dir, bundlesFile), &m); err != nil {
		return domain.PreKeyBundle{}, false, err
	}
	b, ok := m[username]
	return b, ok, nil
}

// Compile-time assertion that BundleFileStore implements domain.BundleStore.
var _ domain.BundleStore = (*BundleFileStore)(nil)
