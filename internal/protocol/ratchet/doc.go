// Package ratchet implements the Double Ratchet algorithm with encrypted
// headers, following Signal's design.
//
// The algorithm maintains a root key and two message chains (send and
// receive). Each message advances a KDF chain so that keys are forward
// secure. When a party changes its DH ratchet public key, both sides derive
// new chain keys and new header keys from a new root derived via DH.
// Receivers tell the current chain from a new one by which header key opens
// the encrypted header.
//
// Encrypt and Decrypt are pure state transitions over a RatchetState value:
// Decrypt works on a clone and commits only on success, so a failed MAC
// leaves counters and cached keys untouched. Persistence is the caller's
// concern, at its own commit points.
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per conversation.
package ratchet
