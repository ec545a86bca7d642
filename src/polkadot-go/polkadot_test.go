package polkadot

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alicePub   = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceSS58  = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	testPhrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
)

func TestStorageKeySystemAccount(t *testing.T) {
	assert.Equal(t,
		"0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9",
		StorageKey("System", "Account"))
}

func TestStorageKeyUint32AppendsConcatKey(t *testing.T) {
	key := StorageKeyUint32("Referenda", "ReferendumInfoFor", 7)
	raw, err := DecodeHex(key)
	require.NoError(t, err)
	require.Len(t, raw, 16+16+16+4)
	assert.Equal(t, []byte{7, 0, 0, 0}, raw[48:])
}

func TestBlake2_256Length(t *testing.T) {
	assert.Len(t, Blake2_256([]byte("vote")), 32)
	assert.Len(t, Blake2_128([]byte("vote")), 16)
}

func TestSS58RoundTrip(t *testing.T) {
	pub, err := hex.DecodeString(alicePub)
	require.NoError(t, err)

	addr := EncodeSS58(pub, 42)
	assert.Equal(t, aliceSS58, addr)

	back, err := DecodeSS58(addr)
	require.NoError(t, err)
	assert.Equal(t, pub, back)

	// polkadot prefix 0 and a two-byte prefix both decode to the same key
	for _, prefix := range []uint16{0, 2, 1284} {
		back, err := DecodeSS58(EncodeSS58(pub, prefix))
		require.NoError(t, err, "prefix %d", prefix)
		assert.Equal(t, pub, back)
	}

	back, err = DecodeSS58("0x" + alicePub)
	require.NoError(t, err)
	assert.Equal(t, pub, back)
}

func TestDecodeSS58Rejects(t *testing.T) {
	_, err := DecodeSS58("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ")
	assert.Error(t, err)
	_, err = DecodeSS58("not-an-address")
	assert.Error(t, err)
	_, err = DecodeSS58("0x1234")
	assert.Error(t, err)
}

func TestStandardVoteEncoding(t *testing.T) {
	enc, err := codec.Encode(newStandardVote(true, Locked1x, big.NewInt(1000)))
	require.NoError(t, err)

	want := []byte{0x00, 0x81, 0xe8, 0x03}
	want = append(want, make([]byte, 14)...)
	assert.Equal(t, want, enc)

	enc, err = codec.Encode(newStandardVote(false, Locked6x, big.NewInt(1)))
	require.NoError(t, err)
	assert.Equal(t, byte(0x06), enc[1])
}

func TestParseConviction(t *testing.T) {
	cases := map[string]Conviction{
		"":         ConvictionNone,
		"none":     ConvictionNone,
		"Locked1x": Locked1x,
		"locked6x": Locked6x,
		"3":        Locked3x,
	}
	for in, want := range cases {
		got, err := ParseConviction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseConviction("locked7x")
	assert.Error(t, err)
	assert.Equal(t, "Locked2x", Locked2x.String())
	assert.Equal(t, "None", ConvictionNone.String())
}

func TestDecodeReferendumInfo(t *testing.T) {
	info, err := DecodeReferendumInfo(12, []byte{1, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, info.Status)
	assert.False(t, info.Ongoing())

	info, err = DecodeReferendumInfo(12, []byte{0, 0x21, 0x00})
	require.NoError(t, err)
	assert.True(t, info.Ongoing())
	assert.Equal(t, uint16(33), info.Track)

	_, err = DecodeReferendumInfo(12, []byte{9})
	assert.Error(t, err)
	_, err = DecodeReferendumInfo(12, nil)
	assert.Error(t, err)
}

func TestNewSigner(t *testing.T) {
	s, err := NewSigner("//Alice", 42)
	require.NoError(t, err)
	assert.Equal(t, aliceSS58, s.Address())
	assert.Equal(t, alicePub, hex.EncodeToString(s.PublicKey()))

	_, err = NewSigner(testPhrase+"//polkadot", 0)
	require.NoError(t, err)

	_, err = NewSigner("not a valid mnemonic phrase", 0)
	assert.Error(t, err)

	_, err = NewSigner("  ", 0)
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestGatewayReadOnly(t *testing.T) {
	g, err := NewGateway(Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, g.Address())

	_, err = g.SubmitVote(t.Context(), VoteRequest{Referendum: 1, Aye: true, Balance: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrNoSigner)

	_, err = g.FreeBalance(t.Context(), aliceSS58)
	assert.Error(t, err)
}
