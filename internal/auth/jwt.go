// Package auth guards the control API with a single admin account:
// bcrypt-checked login exchanging credentials for a signed JWT.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims carries the authenticated username inside the JWT.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates access tokens.
type JWTManager struct {
	secret   []byte
	duration time.Duration
}

func NewJWTManager(secret string, duration time.Duration) *JWTManager {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), duration: duration}
}

// Generate issues a signed access token for the given username.
func (m *JWTManager) Generate(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "trading-bot",
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns the username it was issued to.
func (m *JWTManager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}

// ExpiresIn returns the token lifetime in seconds, for login responses.
func (m *JWTManager) ExpiresIn() int64 {
	return int64(m.duration.Seconds())
}
