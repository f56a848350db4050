package scheme

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecp256k1ValidateKey(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	compressed := EncodeSecp256k1Key(&priv.PublicKey)
	uncompressed := hexutil.Encode(crypto.FromECDSAPub(&priv.PublicKey))

	offCurve := make([]byte, 65)
	offCurve[0] = 0x04
	offCurve[64] = 1

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"compressed", compressed, true},
		{"uncompressed", uncompressed, true},
		{"missing prefix", compressed[2:], false},
		{"address length", hexutil.Encode(make([]byte, 20)), false},
		{"off curve", hexutil.Encode(offCurve), false},
		{"empty", "", false},
		{"bare prefix", "0x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Secp256k1{}.ValidateKey(tt.key))
		})
	}
}

func TestSecp256k1Verify(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	key := EncodeSecp256k1Key(&priv.PublicKey)
	msg := "Wallet Ownership Verification\n\nNonce: 42"
	sig, err := SignSecp256k1(priv, msg)
	require.NoError(t, err)

	assert.True(t, Secp256k1{}.Verify(msg, sig, key))
	assert.True(t, Secp256k1{}.Verify(msg, sig, hexutil.Encode(crypto.FromECDSAPub(&priv.PublicKey))), "uncompressed key")
	assert.False(t, Secp256k1{}.Verify(msg, sig, EncodeSecp256k1Key(&other.PublicKey)))
	assert.False(t, Secp256k1{}.Verify(msg+".", sig, key))
	assert.False(t, Secp256k1{}.Verify(msg, "0x1234", key))
	assert.False(t, Secp256k1{}.Verify(msg, "zz", key))

	// wallets commonly send V as 27/28
	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[64] += 27
	assert.True(t, Secp256k1{}.Verify(msg, hexutil.Encode(raw), key))
}

func TestSecp256k1SingleBitMutations(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	key := EncodeSecp256k1Key(&priv.PublicKey)
	msg := "Nonce: 7f"

	sig, err := SignSecp256k1(priv, msg)
	require.NoError(t, err)
	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)

	for i := 0; i < len(raw)*8; i++ {
		mutated := append([]byte(nil), raw...)
		mutated[i/8] ^= 1 << (i % 8)
		require.False(t, Secp256k1{}.Verify(msg, hexutil.Encode(mutated), key), "signature bit %d", i)
	}
	for i := 0; i < len(msg)*8; i++ {
		mutated := []byte(msg)
		mutated[i/8] ^= 1 << (i % 8)
		require.False(t, Secp256k1{}.Verify(string(mutated), sig, key), "message bit %d", i)
	}
}
