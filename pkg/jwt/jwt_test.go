package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndValidate(t *testing.T) {
	id := Identity{UserID: "0b0f7d8c-6a43-4c55-9a2e-6d3c2f6a1e11", Email: "a@example.com", Role: "admin"}

	token, err := GenerateToken(id, AccessToken, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, claims.UserID)
	assert.Equal(t, id.Email, claims.Email)
	assert.Equal(t, id.Role, claims.Role)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, id.UserID, claims.Subject)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(Identity{UserID: "u"}, AccessToken, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other")
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	token, err := GenerateToken(Identity{UserID: "u"}, AccessToken, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	assert.ErrorIs(t, err, gojwt.ErrTokenExpired)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{UserID: "u", TokenType: AccessToken})
	signed, err := token.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, testSecret)
	assert.Error(t, err)
}

func TestIsTokenValidChecksType(t *testing.T) {
	token, err := GenerateToken(Identity{UserID: "u"}, UploadToken, testSecret, time.Hour)
	require.NoError(t, err)

	assert.True(t, IsTokenValid(token, testSecret, UploadToken))
	assert.False(t, IsTokenValid(token, testSecret, AccessToken))
}
