package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService("secret")

	token, err := s.GenerateToken("123456")
	require.NoError(t, err)

	uid, err := s.ExtractUserID(token)
	require.NoError(t, err)
	assert.Equal(t, "123456", uid)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret").GenerateToken("u1")
	require.NoError(t, err)

	_, err = NewJWTService("other").ExtractUserID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	s := NewJWTService("secret")
	s.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err := s.GenerateToken("u1")
	require.NoError(t, err)

	_, err = NewJWTService("secret").ExtractUserID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret").ExtractUserID(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RequiresUserID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret").ExtractUserID(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
