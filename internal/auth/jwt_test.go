package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m, err := NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := m.GenerateToken("alice@example.com")
	require.NoError(t, err)

	email, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	a, _ := NewTokenManager("secret-a", time.Hour)
	b, _ := NewTokenManager("secret-b", time.Hour)

	token, err := a.GenerateToken("alice@example.com")
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateRejectsEmptySubject(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)
	token, err := m.GenerateToken("")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestValidateNormalizesSubject(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)
	token, err := m.GenerateToken("  Alice@Example.COM ")
	require.NoError(t, err)

	email, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	token, err = m.GenerateToken("   ")
	require.NoError(t, err)
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
