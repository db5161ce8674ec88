// Package auth signs and verifies the access tokens handed to gRPC clients.
// A token only carries a session id; the session manager decides whether
// that session is still alive.
package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the session id. Subject holds the
// user id in decimal.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// UserID parses Subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject: %v", common.ErrInvalidToken, err)
	}
	return id, nil
}

// GenerateToken signs an HS256 token for s. The token expires with the
// session; a session without expiry gives a token without exp.
func GenerateToken(s *models.Session, secretKey []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(s.UserID, 10),
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
		},
		SessionID: s.ID,
	}
	if !s.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(s.ExpiresAt)
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// ParseToken verifies tokenString and returns its claims. An expired token
// yields common.ErrTokenExpired; anything else wrong with it yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.SessionID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
