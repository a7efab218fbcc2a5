package util

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckToken(t *testing.T) {
	tm := NewTokenManager("secret")
	raw, err := tm.CreateToken(Identity{AuthID: "auth|1", Email: "ada@example.com", Name: "Ada"}, time.Hour)
	require.NoError(t, err)

	id, err := tm.CheckToken(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{AuthID: "auth|1", Email: "ada@example.com", Name: "Ada"}, id)

	_, err = NewTokenManager("other").CheckToken(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	expired, err := tm.CreateToken(Identity{AuthID: "auth|1"}, -time.Minute)
	require.NoError(t, err)
	_, err = tm.CheckToken(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	anonymous, err := tm.CreateToken(Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = tm.CheckToken(anonymous)
	assert.ErrorIs(t, err, ErrMissingSubject)
}
