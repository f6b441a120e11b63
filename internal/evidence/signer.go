package evidence

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims for evidence download tokens.
// The blob key is the subject, so one token fetches one blob.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer mints and verifies download tokens for evidence keys.
type Signer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewSigner creates a new token signer.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{
		secret: secret,
		ttl:    ttl,
		issuer: "logwarden",
	}
}

// Sign creates a download token for the given blob key.
func (s *Signer) Sign(key string) (string, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates a download token and returns the blob key it grants.
func (s *Signer) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	// Verify issuer
	if claims.Issuer != s.issuer {
		return "", fmt.Errorf("invalid issuer")
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}

// TTL returns the token time-to-live duration.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}
