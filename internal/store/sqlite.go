package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"veilchat/internal/domain"
)

// SQLiteStore persists sessions and Double Ratchet conversations in a
// sqlite database. Every save is a single transactional upsert, so ratchet
// state is durable before any ciphertext leaves the process.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	peer       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	peer       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, wrapStorage("open "+path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrapStorage("ping "+path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, wrapStorage("migrate "+path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) upsert(table string, peer domain.Username, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return wrapStorage("encode "+table, err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return wrapStorage("begin "+table, err)
	}
	_, err = tx.Exec(
		`INSERT INTO `+table+` (peer, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(peer) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(peer), data, time.Now().Unix(),
	)
	if err != nil {
		tx.Rollback()
		return wrapStorage("save "+table, err)
	}
	if err := tx.Commit(); err != nil {
		return wrapStorage("commit "+table, err)
	}
	return nil
}

func (s *SQLiteStore) load(table string, peer domain.Username, v any) (bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM `+table+` WHERE peer = ?`, string(peer)).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapStorage("load "+table, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, wrapStorage("decode "+table, err)
	}
	return true, nil
}

func (s *SQLiteStore) remove(table string, peer domain.Username) error {
	if _, err := s.db.Exec(`DELETE FROM `+table+` WHERE peer = ?`, string(peer)); err != nil {
		return wrapStorage("delete "+table, err)
	}
	return nil
}

// SaveSession commits the session record for peer atomically.
func (s *SQLiteStore) SaveSession(peer domain.Username, sess domain.Session) error {
	return s.upsert("sessions", peer, sess)
}

// LoadSession retrieves the stored session for peer.
func (s *SQLiteStore) LoadSession(peer domain.Username) (domain.Session, bool, error) {
	var sess domain.Session
	ok, err := s.load("sessions", peer, &sess)
	return sess, ok, err
}

// DeleteSession removes the session for peer.
func (s *SQLiteStore) DeleteSession(peer domain.Username) error {
	return s.remove("sessions", peer)
}

// Sessions enumerates peers with stored sessions, for maintenance sweeps.
func (s *SQLiteStore) Sessions() ([]domain.Username, error) {
	rows, err := s.db.Query(`SELECT peer FROM sessions ORDER BY peer`)
	if err != nil {
		return nil, wrapStorage("list sessions", err)
	}
	defer rows.Close()

	var out []domain.Username
	for rows.Next() {
		var peer string
		if err := rows.Scan(&peer); err != nil {
			return nil, wrapStorage("scan sessions", err)
		}
		out = append(out, domain.Username(peer))
	}
	return out, rows.Err()
}

// SaveConversation commits the ratchet state for peer atomically.
func (s *SQLiteStore) SaveConversation(peer domain.Username, c domain.Conversation) error {
	return s.upsert("conversations", peer, c)
}

// LoadConversation retrieves the ratchet state for peer.
func (s *SQLiteStore) LoadConversation(peer domain.Username) (domain.Conversation, bool, error) {
	var c domain.Conversation
	ok, err := s.load("conversations", peer, &c)
	return c, ok, err
}

// DeleteConversation removes the ratchet state for peer.
func (s *SQLiteStore) DeleteConversation(peer domain.Username) error {
	return s.remove("conversations", peer)
}

// Compile-time assertions for the storage contracts.
var (
	_ domain.SessionStore      = (*SQLiteStore)(nil)
	_ domain.ConversationStore = (*SQLiteStore)(nil)
)
