// Package message sends and receives end-to-end encrypted messages.
//
// It orchestrates the Double Ratchet around the relay: loading state,
// running the pure encrypt/decrypt transitions, persisting state at commit
// points, and serialising all work per peer.
package message
