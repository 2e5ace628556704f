package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("test-secret", 900)

	token, err := m.GenerateAccessToken("user-1", "Jane", "admin")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestManager_WrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", 900).GenerateAccessToken("user-1", "", "user")
	require.NoError(t, err)

	_, err = NewManager("secret-b", 900).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("test-secret", -60)
	token, err := m.GenerateAccessToken("user-1", "", "user")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
