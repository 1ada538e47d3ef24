package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs the HS256 access tokens the auth middleware accepts.
// The reference backend has no login flow; tokens are minted by
// `quizctl token`.
type TokenIssuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, maxAgeSeconds int) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		maxAge: time.Duration(maxAgeSeconds) * time.Second,
		now:    time.Now,
	}
}

func (t *TokenIssuer) Issue(userID int64) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	if userID <= 0 {
		return "", errors.New("user id must be positive")
	}

	now := t.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(t.maxAge).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}
