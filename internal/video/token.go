package video

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "vibecall-video"

// RoomClaims are carried by a join credential.
type RoomClaims struct {
	RoomID string `json:"room"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 join credentials.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), now: now}
}

// Issue signs a credential for userID in roomID valid for ttl.
func (t *TokenIssuer) Issue(roomID, userID string, ttl time.Duration) (Credential, error) {
	if len(t.secret) == 0 {
		return Credential{}, errors.New("video: token secret is not configured")
	}
	if roomID == "" || userID == "" {
		return Credential{}, errors.New("video: room and user are required")
	}
	now := t.now()
	exp := now.Add(ttl)
	claims := RoomClaims{
		RoomID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("video: sign token: %w", err)
	}
	return Credential{Token: signed, ExpiresAt: exp}, nil
}

// Parse verifies a credential and returns its claims.
func (t *TokenIssuer) Parse(token string) (*RoomClaims, error) {
	claims := &RoomClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
