package domain

import "errors"

// Error kinds surfaced by the E2EE core. Callers match with errors.Is; the
// concrete messages wrapping these never contain key material.
var (
	// ErrKeyGeneration indicates the crypto provider failed to produce key material.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrAuthentication indicates a bad signed-prekey signature or a failed
	// sender verification. Handshakes fail closed on it.
	ErrAuthentication = errors.New("authentication failed")

	// ErrIntegrity indicates a MAC or AEAD verification failure. The message
	// is dropped and no ratchet state is mutated.
	ErrIntegrity = errors.New("message integrity check failed")

	// ErrSessionNotFound indicates no established session exists for the peer.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRatchetState indicates corrupted or missing ratchet fields, or a
	// message that falls outside what the bounded skip cache can serve.
	ErrRatchetState = errors.New("invalid ratchet state")

	// ErrStorage indicates a persistence failure. The triggering operation
	// aborts before any externally observable effect.
	ErrStorage = errors.New("storage failure")
)
