package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the credential could not be verified.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by issued tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	ProfileID string `json:"profile_id,omitempty"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthority issues and verifies HMAC-signed bearer tokens. It is the
// default implementation of TokenVerifier and TokenIssuer.
type JWTAuthority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTAuthority creates an authority signing with the given secret.
func NewJWTAuthority(secret string, ttl time.Duration) *JWTAuthority {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &JWTAuthority{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a signed token for the actor.
func (a *JWTAuthority) Issue(actor Actor) (string, error) {
	now := a.now()
	claims := Claims{
		UserID:    actor.UserID,
		ProfileID: actor.ProfileID,
		Role:      actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify resolves a token to its actor.
func (a *JWTAuthority) Verify(_ context.Context, tokenString string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return Actor{}, ErrInvalidToken
	}

	return Actor{
		UserID:    claims.UserID,
		ProfileID: claims.ProfileID,
		Role:      claims.Role,
	}, nil
}
