package msgcodec

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
	"veilchat/internal/util/memzero"
)

const (
	headerLen = 40 // 32-byte ratchet pub + two uint32 counters

	// deriveInfo labels the expansion of a message key into body-encryption
	// key, MAC key and body nonce.
	deriveInfo = "veilchat-msg"
)

// Seal encrypts header and plaintext and MACs both ciphertexts.
//
// The header travels under headerKey with a random nonce (header keys span a
// whole chain). The body key and nonce are derived from the single-use
// messageKey, so a fixed derivation is safe. ad is bound into both the body
// AEAD and the MAC.
func Seal(p crypto.Provider, headerKey, messageKey []byte, h domain.Header, plaintext, ad []byte) (domain.SealedMessage, error) {
	nonce, err := p.Random(crypto.NonceSize)
	if err != nil {
		return domain.SealedMessage{}, err
	}
	hdrCT, err := p.Seal(headerKey, nonce, nil, encodeHeader(h))
	if err != nil {
		return domain.SealedMessage{}, err
	}
	encHeader := append(nonce, hdrCT...)

	encKey, macKey, bodyNonce, err := deriveMessageKeys(p, messageKey)
	if err != nil {
		return domain.SealedMessage{}, err
	}
	defer memzero.Zero(encKey)
	defer memzero.Zero(macKey)

	body, err := p.Seal(encKey, bodyNonce, ad, plaintext)
	if err != nil {
		return domain.SealedMessage{}, err
	}

	return domain.SealedMessage{
		EncHeader: encHeader,
		Body:      body,
		MAC:       p.MAC(macKey, macInput(ad, encHeader, body)),
	}, nil
}

// OpenHeader decrypts only the header. It reports ErrIntegrity when the
// header key does not fit; the ratchet uses that signal to distinguish the
// current chain from a new one.
func OpenHeader(p crypto.Provider, headerKey, encHeader []byte) (domain.Header, error) {
	if len(encHeader) < crypto.NonceSize {
		return domain.Header{}, fmt.Errorf("short header: %w", domain.ErrIntegrity)
	}
	raw, err := p.Open(headerKey, encHeader[:crypto.NonceSize], nil, encHeader[crypto.NonceSize:])
	if err != nil {
		return domain.Header{}, err
	}
	return decodeHeader(raw)
}

// Open verifies the MAC over header and body, then decrypts the body. Any
// single-bit change in either part fails with ErrIntegrity before anything
// is released.
func Open(p crypto.Provider, messageKey []byte, msg domain.SealedMessage, ad []byte) ([]byte, error) {
	encKey, macKey, bodyNonce, err := deriveMessageKeys(p, messageKey)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(encKey)
	defer memzero.Zero(macKey)

	want := p.MAC(macKey, macInput(ad, msg.EncHeader, msg.Body))
	if !hmac.Equal(want, msg.MAC) {
		return nil, fmt.Errorf("mac mismatch: %w", domain.ErrIntegrity)
	}
	return p.Open(encKey, bodyNonce, ad, msg.Body)
}

// deriveMessageKeys expands a message key into the body-encryption key, the
// MAC key and the body nonce.
func deriveMessageKeys(p crypto.Provider, messageKey []byte) (encKey, macKey, nonce []byte, err error) {
	out, err := p.KDF(messageKey, nil, []byte(deriveInfo), 2*crypto.KeySize+crypto.NonceSize)
	if err != nil {
		return nil, nil, nil, err
	}
	return out[:crypto.KeySize],
		out[crypto.KeySize : 2*crypto.KeySize],
		out[2*crypto.KeySize:],
		nil
}

func macInput(ad, encHeader, body []byte) []byte {
	in := make([]byte, 0, len(ad)+len(encHeader)+len(body))
	in = append(in, ad...)
	in = append(in, encHeader...)
	in = append(in, body...)
	return in
}

// encodeHeader lays out the header as fixed-width fields: ratchet pub,
// previous-chain counter, counter.
func encodeHeader(h domain.Header) []byte {
	out := make([]byte, headerLen)
	copy(out, h.DHPub[:])
	binary.BigEndian.PutUint32(out[32:36], h.PN)
	binary.BigEndian.PutUint32(out[36:40], h.N)
	return out
}

func decodeHeader(raw []byte) (domain.Header, error) {
	if len(raw) != headerLen {
		return domain.Header{}, fmt.Errorf("header length %d: %w", len(raw), domain.ErrIntegrity)
	}
	var h domain.Header
	copy(h.DHPub[:], raw[:32])
	h.PN = binary.BigEndian.Uint32(raw[32:36])
	h.N = binary.BigEndian.Uint32(raw[36:40])
	return h, nil
}
