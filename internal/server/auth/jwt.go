// Package auth is the credential codec: bcrypt password hashing and HS256
// bearer tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/server/models"
)

// Claims carries the registered claims plus the identity snapshot taken at
// issuance. Consumers re-fetch the user instead of trusting Email/IsAdmin.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// TokenCodec signs and verifies bearer tokens with a shared secret.
type TokenCodec struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewTokenCodec(secretKey string, validity time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secretKey), validity: validity, now: time.Now}
}

// IssueToken returns a signed token whose subject is the user ID.
func (c *TokenCodec) IssueToken(user *models.User) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity)),
		},
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// DecodeToken checks signature, algorithm and expiry. Every failure wraps
// common.ErrInvalidToken.
func (c *TokenCodec) DecodeToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
