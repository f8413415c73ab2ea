// Package store provides persistence for veilchat's core data.
//
// Identity and prekey material live in JSON files under the configured home
// directory, with the identity encrypted under a passphrase-derived key.
// Session and Double Ratchet state live in a sqlite database so that every
// save commits atomically; the message service relies on that to persist
// ratchet state before any ciphertext leaves the process.
//
// All stores are concurrency-safe via internal locking. Failures surface
// wrapped in domain.ErrStorage so callers can abort cleanly.
package store
