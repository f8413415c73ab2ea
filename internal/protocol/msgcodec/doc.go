// Package msgcodec frames and protects individual ratchet messages.
//
// A sealed message has three parts: the header (sender ratchet key and
// counters) encrypted under the current header key, the body encrypted
// under a key derived from the single-use message key, and a MAC over both
// ciphertexts keyed separately from the body key. The header can be opened
// on its own, before any trust in the body exists; the body is released
// only after the MAC verifies.
package msgcodec
