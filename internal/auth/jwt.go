package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenTTL is how long an issued session token stays valid.
const TokenTTL = 15 * time.Minute

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken creates a signed session token for the account and
// returns it with its expiration timestamp.
func GenerateToken(username string, secret []byte) (string, int64, error) {
	expiresAt := time.Now().Add(TokenTTL).Unix()
	claims := jwt.MapClaims{
		"sub": username,
		"exp": expiresAt,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signed, expiresAt, nil
}

// ParseToken validates a session token and returns the account it was
// issued to.
func ParseToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	username, ok := claims["sub"].(string)
	if !ok || username == "" {
		return "", ErrInvalidToken
	}
	return username, nil
}
