package msgcodec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"veilchat/internal/crypto/cryptotest"
	"veilchat/internal/domain"
	"veilchat/internal/protocol/msgcodec"
)

func testKeys(t *testing.T) (hk, mk []byte) {
	t.Helper()
	return bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 32)
}

func TestSealOpenRoundTrip(t *testing.T) {
	p := cryptotest.New(t.Name())
	hk, mk := testKeys(t)
	h := domain.Header{PN: 3, N: 7}
	copy(h.DHPub[:], bytes.Repeat([]byte{0xAB}, 32))
	ad := []byte("alice>bob")

	sealed, err := msgcodec.Seal(p, hk, mk, h, []byte("payload"), ad)
	require.NoError(t, err)

	got, err := msgcodec.OpenHeader(p, hk, sealed.EncHeader)
	require.NoError(t, err)
	require.Equal(t, h, got)

	pt, err := msgcodec.Open(p, mk, sealed, ad)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), pt)
}

func TestOpenHeaderWrongKey(t *testing.T) {
	p := cryptotest.New(t.Name())
	hk, mk := testKeys(t)

	sealed, err := msgcodec.Seal(p, hk, mk, domain.Header{N: 1}, []byte("x"), nil)
	require.NoError(t, err)

	wrong := bytes.Repeat([]byte{0x33}, 32)
	_, err = msgcodec.OpenHeader(p, wrong, sealed.EncHeader)
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestOpenHeaderTruncated(t *testing.T) {
	p := cryptotest.New(t.Name())
	hk, _ := testKeys(t)

	_, err := msgcodec.OpenHeader(p, hk, []byte{0x01, 0x02})
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestOpenRejectsEveryBitFlip(t *testing.T) {
	p := cryptotest.New(t.Name())
	hk, mk := testKeys(t)
	ad := []byte("alice>bob")

	sealed, err := msgcodec.Seal(p, hk, mk, domain.Header{N: 2}, []byte("short"), ad)
	require.NoError(t, err)

	flip := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i] ^= 0x80
		return out
	}
	for i := range sealed.EncHeader {
		m := sealed
		m.EncHeader = flip(sealed.EncHeader, i)
		_, err := msgcodec.Open(p, mk, m, ad)
		require.ErrorIs(t, err, domain.ErrIntegrity, "header byte %d", i)
	}
	for i := range sealed.Body {
		m := sealed
		m.Body = flip(sealed.Body, i)
		_, err := msgcodec.Open(p, mk, m, ad)
		require.ErrorIs(t, err, domain.ErrIntegrity, "body byte %d", i)
	}
	for i := range sealed.MAC {
		m := sealed
		m.MAC = flip(sealed.MAC, i)
		_, err := msgcodec.Open(p, mk, m, ad)
		require.ErrorIs(t, err, domain.ErrIntegrity, "mac byte %d", i)
	}
}

func TestOpenBindsAssociatedData(t *testing.T) {
	p := cryptotest.New(t.Name())
	hk, mk := testKeys(t)

	sealed, err := msgcodec.Seal(p, hk, mk, domain.Header{}, []byte("x"), []byte("alice>bob"))
	require.NoError(t, err)

	_, err = msgcodec.Open(p, mk, sealed, []byte("alice>carol"))
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestSealedHeadersDiffer(t *testing.T) {
	p := cryptotest.New(t.Name())
	hk, mk := testKeys(t)
	h := domain.Header{N: 5}

	a, err := msgcodec.Seal(p, hk, mk, h, []byte("same"), nil)
	require.NoError(t, err)
	b, err := msgcodec.Seal(p, hk, mk, h, []byte("same"), nil)
	require.NoError(t, err)

	// Fresh header nonce per message: identical headers never collide on
	// the wire.
	require.NotEqual(t, a.EncHeader, b.EncHeader)
}
