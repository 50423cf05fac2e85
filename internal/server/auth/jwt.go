package auth

import (
	"time"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the account identifier
// and the per-login session secret. The secret travels only inside the
// signed token; the server stores its digest.
type Claims struct {
	jwt.RegisteredClaims
	AccountID     string
	SessionSecret string
}

// GenerateToken signs an HS256 session token embedding the account id and
// the plaintext per-login secret.
func GenerateToken(accountID, sessionSecret string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		AccountID:     accountID,
		SessionSecret: sessionSecret,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of a session token and
// returns the embedded account id and session secret. Any verification
// failure yields ErrInvalidToken without detail.
func ParseToken(tokenString string, secretKey []byte) (string, string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", "", common.ErrInvalidToken
	}

	if !token.Valid {
		return "", "", common.ErrInvalidToken
	}

	return claims.AccountID, claims.SessionSecret, nil
}
