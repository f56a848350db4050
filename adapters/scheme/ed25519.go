package scheme

import (
	"crypto/ed25519"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Ed25519 handles Solana-style wallets: base58 32-byte public keys and base58
// 64-byte detached signatures.
type Ed25519 struct{}

func (Ed25519) Name() string { return NameEd25519 }

// ValidateKey decodes key and checks the point lies on edwards25519
func (Ed25519) ValidateKey(key string) bool {
	_, ok := decodeEd25519Key(key)
	return ok
}

// Verify checks signature over the UTF-8 bytes of message
func (Ed25519) Verify(message, signature, key string) bool {
	pub, ok := decodeEd25519Key(key)
	if !ok {
		return false
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, []byte(message), sig)
}

func decodeEd25519Key(key string) (ed25519.PublicKey, bool) {
	if key == "" {
		return nil, false
	}
	raw, err := base58.Decode(key)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, false
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return nil, false
	}
	return ed25519.PublicKey(raw), true
}

// EncodeEd25519Key renders a public key the way ValidateKey expects it
func EncodeEd25519Key(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// SignEd25519 signs message and encodes the signature for Verify.
// Wallets do this client side; it exists for tooling and tests.
func SignEd25519(priv ed25519.PrivateKey, message string) string {
	return base58.Encode(ed25519.Sign(priv, []byte(message)))
}
