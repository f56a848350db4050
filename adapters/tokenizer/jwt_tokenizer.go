package tokenizer

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

const AudienceAccess = "walletlink:access"

// ErrInvalidToken is returned for any token that fails parsing or validation
var ErrInvalidToken = errors.New("invalid token")

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs.
// A verify-only tokenizer has no signing key.
type JWTTokenizer struct {
	signKey   *ecdsa.PrivateKey
	verifyKey *ecdsa.PublicKey
}

// NewJWTTokenizer creates a tokenizer that can both issue and verify tokens
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey, verifyKey: &signKey.PublicKey}
}

// NewVerifyingTokenizer creates a tokenizer for tokens minted elsewhere
func NewVerifyingTokenizer(verifyKey *ecdsa.PublicKey) ports.Tokenizer {
	return &JWTTokenizer{verifyKey: verifyKey}
}

// CallerToAccessToken converts a Caller to an access JWT token
func (j *JWTTokenizer) CallerToAccessToken(caller core.Caller, ttl time.Duration) (string, error) {
	if j.signKey == nil {
		return "", errors.New("tokenizer has no signing key")
	}
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Role: caller.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// AccessTokenToCaller parses an access token and returns the caller it names
func (j *JWTTokenizer) AccessTokenToCaller(tokenStr string) (*core.Caller, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.verifyKey, nil
	}, jwt.WithAudience(AudienceAccess), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = core.RoleUser
	}
	return &core.Caller{UserID: claims.Subject, Role: role}, nil
}

// LoadPrivateKey reads a PEM encoded EC private key (SEC 1 or PKCS #8)
func LoadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

// LoadPublicKey reads a PEM encoded EC public key
func LoadPublicKey(path string) (*ecdsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verify key: %w", err)
	}
	key, err := jwt.ParseECPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse verify key: %w", err)
	}
	return key, nil
}

// EncodePublicKey renders pub as PEM so other services can verify tokens
func EncodePublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
