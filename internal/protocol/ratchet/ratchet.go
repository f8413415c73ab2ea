package ratchet

import (
	"bytes"
	"fmt"

	"veilchat/internal/crypto"
	"veilchat/internal/domain"
	"veilchat/internal/protocol/msgcodec"
	"veilchat/internal/util/memzero"
)

// MaxSkip bounds the skipped-message-key cache per conversation. It should
// tolerate routine loss and reordering without letting a malicious sender
// grow memory or trigger excessive key derivation.
const MaxSkip = 1000

// KDF labels.
const (
	infoRoot   = "DR|rk"
	infoChain  = "DR|ck"
	infoHeader = "DR|hdr"
)

// InitInitiator builds the initiator's state from the X3DH shared secret and
// the responder's signed prekey, which doubles as its first ratchet key. The
// sending chain is live immediately; the receiving chain comes alive with
// the responder's first reply.
func InitInitiator(p crypto.Provider, sharedSecret []byte, peerSignedPreKey domain.X25519Public) (domain.RatchetState, error) {
	hkA, hkB, err := headerKeys(p, sharedSecret)
	if err != nil {
		return domain.RatchetState{}, err
	}
	priv, pub, err := p.GenerateKeyPair()
	if err != nil {
		return domain.RatchetState{}, fmt.Errorf("ratchet key: %w", domain.ErrKeyGeneration)
	}
	dh, err := p.DH(priv, peerSignedPreKey)
	if err != nil {
		return domain.RatchetState{}, err
	}
	rk, cks, nhks, err := kdfRoot(p, sharedSecret, dh)
	memzero.Zero(dh)
	if err != nil {
		return domain.RatchetState{}, err
	}

	return domain.RatchetState{
		RootKey:     rk,
		DHPriv:      priv,
		DHPub:       pub,
		PeerDHPub:   peerSignedPreKey,
		CKs:         cks,
		HKs:         hkA,
		NHKs:        nhks,
		NHKr:        hkB,
		Skipped:     domain.NewSkippedKeys(MaxSkip),
		Established: true,
	}, nil
}

// InitResponder builds the responder's state from the X3DH shared secret and
// its signed prekey pair. Both chains stay empty until the initiator's first
// message arrives and triggers the opening DH ratchet step; the responder
// cannot send before that.
func InitResponder(p crypto.Provider, sharedSecret []byte, spkPriv domain.X25519Private, spkPub domain.X25519Public) (domain.RatchetState, error) {
	hkA, hkB, err := headerKeys(p, sharedSecret)
	if err != nil {
		return domain.RatchetState{}, err
	}
	return domain.RatchetState{
		RootKey:     append([]byte(nil), sharedSecret...),
		DHPriv:      spkPriv,
		DHPub:       spkPub,
		NHKs:        hkB,
		NHKr:        hkA,
		Skipped:     domain.NewSkippedKeys(MaxSkip),
		Established: true,
	}, nil
}

// Encrypt advances the sending chain by one message key and seals plaintext.
// The chain key is overwritten, never reused; state mutates only after the
// codec succeeds.
func Encrypt(p crypto.Provider, st *domain.RatchetState, ad, plaintext []byte) (domain.SealedMessage, error) {
	if !st.Established || st.Skipped == nil {
		return domain.SealedMessage{}, fmt.Errorf("encrypt before establishment: %w", domain.ErrRatchetState)
	}
	if len(st.CKs) == 0 || len(st.HKs) == 0 {
		return domain.SealedMessage{}, fmt.Errorf("sending chain not initialised: %w", domain.ErrRatchetState)
	}

	ck, mk, err := kdfChain(p, st.CKs)
	if err != nil {
		return domain.SealedMessage{}, err
	}
	h := domain.Header{DHPub: st.DHPub, PN: st.PN, N: st.Ns}
	sealed, err := msgcodec.Seal(p, st.HKs, mk, h, plaintext, ad)
	memzero.Zero(mk)
	if err != nil {
		return domain.SealedMessage{}, err
	}

	memzero.Zero(st.CKs)
	st.CKs = ck
	st.Ns++
	return sealed, nil
}

// Decrypt resolves which chain a message belongs to, performing a DH ratchet
// step or consuming a cached skipped key as needed, verifies integrity and
// returns the plaintext. On any error the state is left exactly as it was.
func Decrypt(p crypto.Provider, st *domain.RatchetState, ad []byte, msg domain.SealedMessage) ([]byte, error) {
	if !st.Established || st.Skipped == nil {
		return nil, fmt.Errorf("decrypt before establishment: %w", domain.ErrRatchetState)
	}

	work := st.Clone()
	pt, err := decrypt(p, &work, ad, msg)
	if err != nil {
		return nil, err
	}
	*st = work
	return pt, nil
}

func decrypt(p crypto.Provider, st *domain.RatchetState, ad []byte, msg domain.SealedMessage) ([]byte, error) {
	// Current receiving chain.
	if len(st.HKr) > 0 {
		if h, err := msgcodec.OpenHeader(p, st.HKr, msg.EncHeader); err == nil {
			if h.N < st.Nr {
				return openSkipped(p, st, st.HKr, h.N, msg, ad)
			}
			return openCurrent(p, st, h, msg, ad)
		}
	}

	// Next chain: the peer ratcheted. Cache the tail of the old chain, step,
	// then decrypt on the fresh receiving chain.
	if len(st.NHKr) > 0 {
		if h, err := msgcodec.OpenHeader(p, st.NHKr, msg.EncHeader); err == nil {
			if err := skipUntil(p, st, h.PN); err != nil {
				return nil, err
			}
			if err := dhRatchet(p, st, h.DHPub); err != nil {
				return nil, err
			}
			return openCurrent(p, st, h, msg, ad)
		}
	}

	// Chains from before the last ratchet step: only cached keys remain.
	for _, hk := range st.Skipped.HeaderKeys() {
		if bytes.Equal(hk, st.HKr) {
			continue
		}
		if h, err := msgcodec.OpenHeader(p, hk, msg.EncHeader); err == nil {
			return openSkipped(p, st, hk, h.N, msg, ad)
		}
	}

	return nil, fmt.Errorf("header does not match any known chain: %w", domain.ErrIntegrity)
}

// openCurrent advances the receiving chain up to the header counter, caching
// intervening keys, and opens the message with the key for h.N.
func openCurrent(p crypto.Provider, st *domain.RatchetState, h domain.Header, msg domain.SealedMessage, ad []byte) ([]byte, error) {
	if err := skipUntil(p, st, h.N); err != nil {
		return nil, err
	}
	if len(st.CKr) == 0 {
		return nil, fmt.Errorf("receiving chain not initialised: %w", domain.ErrRatchetState)
	}
	ck, mk, err := kdfChain(p, st.CKr)
	if err != nil {
		return nil, err
	}
	pt, err := msgcodec.Open(p, mk, msg, ad)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	memzero.Zero(st.CKr)
	st.CKr = ck
	st.Nr = h.N + 1
	return pt, nil
}

// openSkipped serves an out-of-order message from the bounded cache. The key
// is consumed on the spot; a message older than anything cached fails
// cleanly instead of growing state.
func openSkipped(p crypto.Provider, st *domain.RatchetState, hk []byte, n uint32, msg domain.SealedMessage, ad []byte) ([]byte, error) {
	mk, ok := st.Skipped.Take(hk, n)
	if !ok {
		return nil, fmt.Errorf("no cached key for late message %d: %w", n, domain.ErrRatchetState)
	}
	pt, err := msgcodec.Open(p, mk, msg, ad)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// skipUntil derives and caches receiving-chain keys up to (but excluding)
// until. Gaps larger than MaxSkip are rejected outright.
func skipUntil(p crypto.Provider, st *domain.RatchetState, until uint32) error {
	if until <= st.Nr {
		return nil
	}
	if len(st.CKr) == 0 {
		return fmt.Errorf("receiving chain not initialised: %w", domain.ErrRatchetState)
	}
	if uint64(until) > uint64(st.Nr)+MaxSkip {
		return fmt.Errorf("message gap %d exceeds skip limit: %w", until-st.Nr, domain.ErrRatchetState)
	}
	for st.Nr < until {
		ck, mk, err := kdfChain(p, st.CKr)
		if err != nil {
			return err
		}
		st.Skipped.Put(st.HKr, st.Nr, mk)
		memzero.Zero(mk)
		memzero.Zero(st.CKr)
		st.CKr = ck
		st.Nr++
	}
	return nil
}

// dhRatchet performs a full DH ratchet step: header keys advance, the
// receiving chain is keyed from the peer's new ratchet key, then a fresh
// local pair keys the next sending chain. The step is atomic; callers never
// observe a half-stepped state.
func dhRatchet(p crypto.Provider, st *domain.RatchetState, peerPub domain.X25519Public) error {
	st.PN = st.Ns
	st.Ns = 0
	st.Nr = 0
	st.HKs = st.NHKs
	st.HKr = st.NHKr
	st.PeerDHPub = peerPub

	dh, err := p.DH(st.DHPriv, peerPub)
	if err != nil {
		return err
	}
	st.RootKey, st.CKr, st.NHKr, err = kdfRoot(p, st.RootKey, dh)
	memzero.Zero(dh)
	if err != nil {
		return err
	}

	priv, pub, err := p.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("ratchet key: %w", domain.ErrKeyGeneration)
	}
	st.DHPriv, st.DHPub = priv, pub

	dh2, err := p.DH(priv, peerPub)
	if err != nil {
		return err
	}
	st.RootKey, st.CKs, st.NHKs, err = kdfRoot(p, st.RootKey, dh2)
	memzero.Zero(dh2)
	return err
}

// kdfRoot mixes a DH output into the root key, yielding the new root, a
// chain key and the next header key for that chain.
func kdfRoot(p crypto.Provider, rk, dh []byte) (newRK, ck, nhk []byte, err error) {
	out, err := p.KDF(dh, rk, []byte(infoRoot), 3*crypto.KeySize)
	if err != nil {
		return nil, nil, nil, err
	}
	return out[:crypto.KeySize], out[crypto.KeySize : 2*crypto.KeySize], out[2*crypto.KeySize:], nil
}

// kdfChain advances a symmetric chain one step, yielding the next chain key
// and a single-use message key.
func kdfChain(p crypto.Provider, ck []byte) (next, mk []byte, err error) {
	out, err := p.KDF(ck, nil, []byte(infoChain), 2*crypto.KeySize)
	if err != nil {
		return nil, nil, err
	}
	return out[:crypto.KeySize], out[crypto.KeySize:], nil
}

// headerKeys derives the two shared initial header keys from the X3DH
// secret: A seeds the initiator's sending direction, B the responder's.
func headerKeys(p crypto.Provider, sharedSecret []byte) (hkA, hkB []byte, err error) {
	out, err := p.KDF(sharedSecret, nil, []byte(infoHeader), 2*crypto.KeySize)
	if err != nil {
		return nil, nil, err
	}
	return out[:crypto.KeySize], out[crypto.KeySize:], nil
}
