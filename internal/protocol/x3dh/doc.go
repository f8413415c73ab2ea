// Package x3dh implements the Extended Triple Diffie-Hellman handshake.
//
// The initiator combines its identity key and a fresh ephemeral against the
// responder's identity, signed prekey and (when available) a one-time
// prekey. Both sides derive the same 32-byte shared secret, which seeds
// Double Ratchet initialisation. The signed-prekey signature is verified
// before any DH computation; a bad signature fails closed.
package x3dh
