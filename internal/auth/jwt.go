package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// NormalizeEmail returns the canonical form of an e-mail used as a user id.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TokenManager signs and verifies HS256 tokens. The subject is the user's
// e-mail, which is also the notification recipient id.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager fails when secret is empty.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateToken creates a token for the given e-mail.
func (m *TokenManager) GenerateToken(email string) (string, error) {
	// 1. Claims: subject, issued-at and expiry
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	// 2. Sign with HS256
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ValidateToken parses tokenString and returns the e-mail in its subject,
// normalized with NormalizeEmail.
func (m *TokenManager) ValidateToken(tokenString string) (string, error) {
	// 1. Parse, accepting HMAC signatures only
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}

	// 2. The subject must be present
	email := NormalizeEmail(claims.Subject)
	if !token.Valid || email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}
