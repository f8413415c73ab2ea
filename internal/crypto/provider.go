package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"veilchat/internal/domain"
)

const (
	// KeySize is the size of every symmetric key the provider produces.
	KeySize = 32

	// NonceSize is the AEAD nonce size.
	NonceSize = chacha20poly1305.NonceSize
)

// Provider abstracts the concrete primitives used by X3DH and the Double
// Ratchet. Production code wires Suite; tests wire a deterministic fake.
type Provider interface {
	// GenerateKeyPair returns a fresh X25519 key pair, clamped per RFC 7748.
	GenerateKeyPair() (domain.X25519Private, domain.X25519Public, error)

	// DH computes the X25519 shared secret.
	DH(priv domain.X25519Private, pub domain.X25519Public) ([]byte, error)

	// KDF derives outLen bytes from ikm with HKDF semantics.
	KDF(ikm, salt, info []byte, outLen int) ([]byte, error)

	// Seal encrypts plaintext with AEAD under key and nonce, binding ad.
	Seal(key, nonce, ad, plaintext []byte) ([]byte, error)

	// Open reverses Seal; any tampering fails deterministically.
	Open(key, nonce, ad, ciphertext []byte) ([]byte, error)

	// MAC computes a keyed authentication tag over data.
	MAC(key, data []byte) []byte

	// Random fills and returns n cryptographically random bytes.
	Random(n int) ([]byte, error)
}

// Suite is the production Provider: X25519, HKDF-SHA256, ChaCha20-Poly1305
// and HMAC-SHA256.
type Suite struct{}

// Default is the provider used outside tests.
var Default Provider = Suite{}

func (Suite) GenerateKeyPair() (domain.X25519Private, domain.X25519Public, error) {
	var priv domain.X25519Private
	var pub domain.X25519Public
	if _, err := rand.Read(priv[:]); err != nil {
		return priv, pub, fmt.Errorf("read random: %w", err)
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return priv, pub, err
	}
	copy(pub[:], pb)
	return priv, pub, nil
}

func (Suite) DH(priv domain.X25519Private, pub domain.X25519Public) ([]byte, error) {
	return curve25519.X25519(priv.Slice(), pub.Slice())
}

func (Suite) KDF(ikm, salt, info []byte, outLen int) ([]byte, error) {
	out := make([]byte, outLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (Suite) Seal(key, nonce, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, ad), nil
}

func (Suite) Open(key, nonce, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("aead open: %w", domain.ErrIntegrity)
	}
	return pt, nil
}

func (Suite) MAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func (Suite) Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func clamp(k *domain.X25519Private) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
