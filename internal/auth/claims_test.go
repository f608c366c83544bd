package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".unverified-signature"
}

func TestDecodeClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token := makeJWT(t, map[string]any{
		"sub":      12,
		"username": "admin",
		"role":     "admin",
		"exp":      exp,
	})

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.Subject)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, exp, claims.ExpiresAt().Unix())
}

func TestDecodeClaimsNotAJWT(t *testing.T) {
	_, err := DecodeClaims("opaque-token")
	assert.Error(t, err)
}

func TestDecodeClaimsBadPayload(t *testing.T) {
	_, err := DecodeClaims("aGVhZGVy.!!!notbase64!!!.c2ln")
	assert.Error(t, err)
}

func TestDecodeClaimsNoExp(t *testing.T) {
	token := makeJWT(t, map[string]any{"username": "x"})
	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt().IsZero())
}
