// Package prekey manages signed and one-time prekey pairs and assembles the
// public bundle for publication.
package prekey
