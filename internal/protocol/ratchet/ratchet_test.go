package ratchet_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"veilchat/internal/crypto"
	"veilchat/internal/crypto/cryptotest"
	"veilchat/internal/domain"
	"veilchat/internal/protocol/ratchet"
)

var (
	adAliceToBob = []byte("alice>bob")
	adBobToAlice = []byte("bob>alice")
)

// newPair establishes alice (initiator) and bob (responder) over a fixed
// shared secret, the way x3dh would hand them off.
func newPair(t *testing.T, p crypto.Provider) (alice, bob domain.RatchetState) {
	t.Helper()
	sharedSecret := bytes.Repeat([]byte{0x42}, 32)

	spkPriv, spkPub, err := p.GenerateKeyPair()
	require.NoError(t, err)

	alice, err = ratchet.InitInitiator(p, sharedSecret, spkPub)
	require.NoError(t, err)
	bob, err = ratchet.InitResponder(p, sharedSecret, spkPriv, spkPub)
	require.NoError(t, err)
	return alice, bob
}

func TestRoundTrip(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	for i := 0; i < 5; i++ {
		want := []byte(fmt.Sprintf("message %d", i))
		sealed, err := ratchet.Encrypt(p, &alice, adAliceToBob, want)
		require.NoError(t, err)

		got, err := ratchet.Decrypt(p, &bob, adAliceToBob, sealed)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, uint32(5), alice.Ns)
	require.Equal(t, uint32(5), bob.Nr)
}

func TestResponderCannotSendFirst(t *testing.T) {
	p := cryptotest.New(t.Name())
	_, bob := newPair(t, p)

	_, err := ratchet.Encrypt(p, &bob, adBobToAlice, []byte("premature"))
	require.ErrorIs(t, err, domain.ErrRatchetState)
}

func TestConversationRatchets(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	hello, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("hello"))
	require.NoError(t, err)
	pt, err := ratchet.Decrypt(p, &bob, adAliceToBob, hello)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)

	// Bob's first decrypt performed a DH ratchet step, so his reply rides a
	// ratchet key distinct from his signed prekey and resets his counter.
	require.NotEqual(t, alice.PeerDHPub, bob.DHPub)
	require.Equal(t, uint32(0), bob.Ns)

	hi, err := ratchet.Encrypt(p, &bob, adBobToAlice, []byte("hi"))
	require.NoError(t, err)
	pt, err = ratchet.Decrypt(p, &alice, adBobToAlice, hi)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), pt)

	// Alice ratcheted in turn; both sides keep converging.
	require.Equal(t, bob.DHPub, alice.PeerDHPub)

	again, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("still here"))
	require.NoError(t, err)
	pt, err = ratchet.Decrypt(p, &bob, adAliceToBob, again)
	require.NoError(t, err)
	require.Equal(t, []byte("still here"), pt)
}

func TestOutOfOrderDelivery(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	sealed := make([]domain.SealedMessage, 5)
	for i := range sealed {
		var err error
		sealed[i], err = ratchet.Encrypt(p, &alice, adAliceToBob, []byte(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
	}

	for _, i := range []int{2, 0, 3, 1, 4} {
		pt, err := ratchet.Decrypt(p, &bob, adAliceToBob, sealed[i])
		require.NoError(t, err, "message %d", i)
		require.Equal(t, []byte(fmt.Sprintf("m%d", i)), pt)
	}
	require.Zero(t, bob.Skipped.Len(), "every cached key should be consumed")

	// Each skipped key is single use; a replay has nothing left to open it.
	_, err := ratchet.Decrypt(p, &bob, adAliceToBob, sealed[1])
	require.ErrorIs(t, err, domain.ErrRatchetState)
}

func TestLateMessageFromPreviousChain(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	m0, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("first, delayed"))
	require.NoError(t, err)
	m1, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("second"))
	require.NoError(t, err)

	// m0 is stuck in transit; bob reads m1 and the conversation moves on
	// through a full round trip, ratcheting both sides twice.
	pt, err := ratchet.Decrypt(p, &bob, adAliceToBob, m1)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), pt)
	require.Equal(t, 1, bob.Skipped.Len())

	reply, err := ratchet.Encrypt(p, &bob, adBobToAlice, []byte("ack"))
	require.NoError(t, err)
	_, err = ratchet.Decrypt(p, &alice, adBobToAlice, reply)
	require.NoError(t, err)

	m2, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("new chain"))
	require.NoError(t, err)
	_, err = ratchet.Decrypt(p, &bob, adAliceToBob, m2)
	require.NoError(t, err)

	// m0's chain is two ratchet steps old; only its cached key can open it.
	pt, err = ratchet.Decrypt(p, &bob, adAliceToBob, m0)
	require.NoError(t, err)
	require.Equal(t, []byte("first, delayed"), pt)
	require.Zero(t, bob.Skipped.Len())
}

func TestTamperingLeavesStateUntouched(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	sealed, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("intact"))
	require.NoError(t, err)

	mutations := map[string]func(m *domain.SealedMessage){
		"header": func(m *domain.SealedMessage) { m.EncHeader[len(m.EncHeader)-1] ^= 0x01 },
		"body":   func(m *domain.SealedMessage) { m.Body[0] ^= 0x01 },
		"mac":    func(m *domain.SealedMessage) { m.MAC[0] ^= 0x01 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			forged := domain.SealedMessage{
				EncHeader: append([]byte(nil), sealed.EncHeader...),
				Body:      append([]byte(nil), sealed.Body...),
				MAC:       append([]byte(nil), sealed.MAC...),
			}
			mutate(&forged)

			nrBefore, cachedBefore := bob.Nr, bob.Skipped.Len()
			_, err := ratchet.Decrypt(p, &bob, adAliceToBob, forged)
			require.ErrorIs(t, err, domain.ErrIntegrity)
			require.Equal(t, nrBefore, bob.Nr)
			require.Equal(t, cachedBefore, bob.Skipped.Len())
		})
	}

	// The genuine message still decrypts after every rejected forgery.
	pt, err := ratchet.Decrypt(p, &bob, adAliceToBob, sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("intact"), pt)
}

func TestWrongAssociatedDataRejected(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	sealed, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("bound"))
	require.NoError(t, err)

	_, err = ratchet.Decrypt(p, &bob, []byte("mallory>bob"), sealed)
	require.ErrorIs(t, err, domain.ErrIntegrity)

	pt, err := ratchet.Decrypt(p, &bob, adAliceToBob, sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("bound"), pt)
}

func TestSkipLimitEnforced(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	var last domain.SealedMessage
	for i := 0; i <= ratchet.MaxSkip+1; i++ {
		var err error
		last, err = ratchet.Encrypt(p, &alice, adAliceToBob, []byte("x"))
		require.NoError(t, err)
	}

	// Jumping straight to counter MaxSkip+1 would force more derivations
	// than the cache bound allows.
	nrBefore := bob.Nr
	_, err := ratchet.Decrypt(p, &bob, adAliceToBob, last)
	require.ErrorIs(t, err, domain.ErrRatchetState)
	require.Equal(t, nrBefore, bob.Nr)
}

func TestReplayAfterDeliveryFails(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, bob := newPair(t, p)

	sealed, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("once"))
	require.NoError(t, err)
	_, err = ratchet.Decrypt(p, &bob, adAliceToBob, sealed)
	require.NoError(t, err)

	// The message key was consumed and the chain key overwritten; even with
	// the post-delivery state in hand the ciphertext stays sealed.
	compromised := bob.Clone()
	_, err = ratchet.Decrypt(p, &compromised, adAliceToBob, sealed)
	require.Error(t, err)
}

func TestEveryMessageKeyDiffers(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, _ := newPair(t, p)

	// Same plaintext under successive chain steps: if any message key were
	// reused the AEAD outputs would collide.
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		sealed, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("constant"))
		require.NoError(t, err)
		require.False(t, seen[string(sealed.Body)], "message %d reused a key", i)
		seen[string(sealed.Body)] = true
	}
}

func TestHeadersHideMetadata(t *testing.T) {
	p := cryptotest.New(t.Name())
	alice, _ := newPair(t, p)

	a, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("one"))
	require.NoError(t, err)
	b, err := ratchet.Encrypt(p, &alice, adAliceToBob, []byte("two"))
	require.NoError(t, err)

	// Same chain, consecutive counters, same ratchet key: the encrypted
	// headers must still be unlinkable on the wire.
	require.NotEqual(t, a.EncHeader, b.EncHeader)
	require.NotContains(t, string(a.EncHeader), string(alice.DHPub.Slice()))
}
