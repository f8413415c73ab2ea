package app

import (
	"net/http"
	"path/filepath"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
	"veilchat/internal/relay"
	identitysvc "veilchat/internal/services/identity"
	messagesvc "veilchat/internal/services/message"
	prekeysvc "veilchat/internal/services/prekey"
	sessionsvc "veilchat/internal/services/session"
	"veilchat/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Identities domain.IdentityService
	PreKeys    domain.PreKeyService
	Sessions   domain.SessionService
	Messages   domain.MessageService
	Relay      domain.RelayClient

	db *store.SQLiteStore
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	identityStore := store.NewIdentityFileStore(cfg.Home)
	prekeyStore := store.NewPreKeyFileStore(cfg.Home)
	bundleStore := store.NewBundleFileStore(cfg.Home)

	db, err := store.OpenSQLite(filepath.Join(cfg.Home, "state.db"))
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rc := relay.NewClient(cfg.RelayURL, httpClient)

	provider := crypto.Default
	idSvc := identitysvc.New(identityStore, provider)
	pkSvc := prekeysvc.New(identityStore, prekeyStore, bundleStore, provider)
	sessSvc := sessionsvc.New(identityStore, bundleStore, db, rc, provider)
	msgSvc := messagesvc.New(identityStore, prekeyStore, db, db, rc, provider)

	return &Wire{
		Identities: idSvc,
		PreKeys:    pkSvc,
		Sessions:   sessSvc,
		Messages:   msgSvc,
		Relay:      rc,
		db:         db,
	}, nil
}

// Close releases held resources.
func (w *Wire) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}
