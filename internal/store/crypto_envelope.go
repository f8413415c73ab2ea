package store

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"veilchat/internal/domain"
	"veilchat/internal/util/memzero"
)

// scrypt parameters for the at-rest key-encryption key.
func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

type sealedBlob struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	CT    []byte `json:"ct"`
}

// sealWithPassphrase encrypts plaintext under a scrypt-derived key.
func sealWithPassphrase(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	N, r, p := scryptParams()
	key, err := scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, salt)
	return json.Marshal(sealedBlob{Salt: salt, Nonce: nonce, CT: ct})
}

// openWithPassphrase reverses sealWithPassphrase. A wrong passphrase fails
// with domain.ErrAuthentication.
func openWithPassphrase(passphrase string, blob []byte) ([]byte, error) {
	var env sealedBlob
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, wrapStorage("decode sealed blob", err)
	}
	N, r, p := scryptParams()
	key, err := scrypt.Key([]byte(passphrase), env.Salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, env.Nonce, env.CT, env.Salt)
	if err != nil {
		return nil, fmt.Errorf("open sealed blob: %w", domain.ErrAuthentication)
	}
	return pt, nil
}
