package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", 42, "a@test.com", "admin", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "a@test.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	token, err := GenerateToken("secret", 1, "a@test.com", "client", time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("secret", 1, "a@test.com", "client", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("secret", "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
