package util

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrMissingSubject = errors.New("token has no subject")

type (
	// JWTClaims is what the auth provider puts into an access token.
	JWTClaims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		jwt.RegisteredClaims
	}
	// Identity is the verified caller before it is matched to a user row.
	Identity struct {
		AuthID string // Subject of the token
		Email  string
		Name   string
	}
)

type TokenManager struct {
	secretKey string
}

func NewTokenManager(secretKey string) *TokenManager {
	return &TokenManager{secretKey: secretKey}
}

// CreateToken signs an access token. The auth provider mints tokens in
// production; this is used by tests and local tooling.
func (tm *TokenManager) CreateToken(id Identity, ttl time.Duration) (string, error) {
	claims := &JWTClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AuthID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secretKey))
}

func (tm *TokenManager) CheckToken(requestToken string) (Identity, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(tm.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, ErrMissingSubject
	}
	return Identity{
		AuthID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}
