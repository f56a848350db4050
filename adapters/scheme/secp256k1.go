package scheme

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	compressedKeyLen   = 33
	uncompressedKeyLen = 65
	recoverableSigLen  = 65
)

// Secp256k1 handles EVM-style keys: 0x-hex compressed or uncompressed public
// keys and 65-byte [R || S || V] signatures over the EIP-191 personal message
// hash.
type Secp256k1 struct{}

func (Secp256k1) Name() string { return NameSecp256k1 }

func (Secp256k1) ValidateKey(key string) bool {
	_, ok := decodeSecp256k1Key(key)
	return ok
}

// Verify recovers the signer from the signature and compares it with key, so
// the recovery id is bound as well as R and S.
func (Secp256k1) Verify(message, signature, key string) bool {
	pub, ok := decodeSecp256k1Key(key)
	if !ok {
		return false
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != recoverableSigLen {
		return false
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return false
	}
	normalized := append(sig[:64:64], v)

	hash := accounts.TextHash([]byte(message))
	recovered, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return false
	}
	if !bytes.Equal(crypto.CompressPubkey(recovered), crypto.CompressPubkey(pub)) {
		return false
	}
	// rejects high-S malleable signatures
	return crypto.VerifySignature(crypto.CompressPubkey(pub), hash, sig[:64])
}

func decodeSecp256k1Key(key string) (*ecdsa.PublicKey, bool) {
	raw, err := hexutil.Decode(key)
	if err != nil {
		return nil, false
	}
	var pub *ecdsa.PublicKey
	switch len(raw) {
	case compressedKeyLen:
		pub, err = crypto.DecompressPubkey(raw)
	case uncompressedKeyLen:
		pub, err = crypto.UnmarshalPubkey(raw)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return pub, true
}

// EncodeSecp256k1Key renders the compressed form of pub
func EncodeSecp256k1Key(pub *ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.CompressPubkey(pub))
}

// SignSecp256k1 produces a personal_sign style signature for Verify
func SignSecp256k1(priv *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), priv)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}
