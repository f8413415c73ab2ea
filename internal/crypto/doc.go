// Package crypto defines the Provider interface the protocol layers consume
// and the production implementation built on golang.org/x/crypto.
//
// Contents
//
//   - Provider: ECDH, KDF, AEAD, MAC and randomness behind one interface so
//     the ratchet and handshake stay agnostic to the concrete primitives
//   - Suite: the production Provider (X25519, HKDF-SHA256,
//     ChaCha20-Poly1305, HMAC-SHA256)
//   - Ed25519 helpers for signed-prekey signatures
//   - Short public-key fingerprints for display
//
// All key-shaped values use the fixed-size array types from internal/domain
// to avoid accidental reallocation. Callers treat returned secrets as
// sensitive and wipe them with internal/util/memzero when practical.
package crypto
