package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletlink/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok := NewJWTTokenizer(newKey(t))

	token, err := tok.CallerToAccessToken(core.Caller{UserID: "u1", Role: core.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	caller, err := tok.AccessTokenToCaller(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.UserID)
	assert.True(t, caller.IsAdmin())
}

func TestAccessTokenDefaultsToUserRole(t *testing.T) {
	tok := NewJWTTokenizer(newKey(t))

	token, err := tok.CallerToAccessToken(core.Caller{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	caller, err := tok.AccessTokenToCaller(token)
	require.NoError(t, err)
	assert.Equal(t, core.RoleUser, caller.Role)
}

func TestAccessTokenRejected(t *testing.T) {
	key := newKey(t)
	tok := NewJWTTokenizer(key)

	expired, err := tok.CallerToAccessToken(core.Caller{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	foreign, err := NewJWTTokenizer(newKey(t)).CallerToAccessToken(core.Caller{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{AudienceAccess},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	hmacToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongAudience := jwt.NewWithClaims(jwt.SigningMethodES256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{"session:access"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	wrongAudienceToken, err := wrongAudience.SignedString(key)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":        expired,
		"foreign key":    foreign,
		"hmac":           hmacToken,
		"wrong audience": wrongAudienceToken,
		"garbage":        "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tok.AccessTokenToCaller(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyingTokenizerFromPEM(t *testing.T) {
	key := newKey(t)
	pemBytes, err := EncodePublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "jwt.pub")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	pub, err := LoadPublicKey(path)
	require.NoError(t, err)

	verifier := NewVerifyingTokenizer(pub)
	_, err = verifier.CallerToAccessToken(core.Caller{UserID: "u1"}, time.Minute)
	assert.Error(t, err)

	token, err := NewJWTTokenizer(key).CallerToAccessToken(core.Caller{UserID: "u2"}, time.Minute)
	require.NoError(t, err)
	caller, err := verifier.AccessTokenToCaller(token)
	require.NoError(t, err)
	assert.Equal(t, "u2", caller.UserID)
}
