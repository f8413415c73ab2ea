// Package cryptotest provides a deterministic crypto.Provider for tests.
package cryptotest

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"

	"golang.org/x/crypto/curve25519"
)

// Provider reuses the production KDF/AEAD/MAC but replaces randomness with a
// counter-mode SHA-256 stream seeded from a string, so two providers built
// with the same seed produce identical key material in identical order.
type Provider struct {
	crypto.Suite

	mu   sync.Mutex
	seed [32]byte
	ctr  uint64
}

// New returns a deterministic provider seeded from s.
func New(s string) *Provider {
	p := &Provider{}
	p.seed = sha256.Sum256([]byte(s))
	return p
}

func (p *Provider) Random(n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]byte, 0, n)
	var block [8]byte
	for len(out) < n {
		binary.BigEndian.PutUint64(block[:], p.ctr)
		p.ctr++
		h := sha256.New()
		h.Write(p.seed[:])
		h.Write(block[:])
		out = append(out, h.Sum(nil)...)
	}
	return out[:n], nil
}

func (p *Provider) GenerateKeyPair() (domain.X25519Private, domain.X25519Public, error) {
	var priv domain.X25519Private
	var pub domain.X25519Public
	b, err := p.Random(32)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], b)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return priv, pub, err
	}
	copy(pub[:], pb)
	return priv, pub, nil
}

var _ crypto.Provider = (*Provider)(nil)
