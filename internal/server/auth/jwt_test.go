package auth

import (
	"testing"
	"time"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_RoundTrip(t *testing.T) {
	key := []byte("test-key")

	tok, err := GenerateToken("acc-1", "secret-xyz", key, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	accountID, secret, err := ParseToken(tok, key)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)
	assert.Equal(t, "secret-xyz", secret)
}

func TestParseToken_WrongKey(t *testing.T) {
	tok, err := GenerateToken("acc-1", "s", []byte("key-a"), time.Hour)
	require.NoError(t, err)

	_, _, err = ParseToken(tok, []byte("key-b"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_Expired(t *testing.T) {
	key := []byte("test-key")
	tok, err := GenerateToken("acc-1", "s", key, -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseToken(tok, key)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_Garbage(t *testing.T) {
	_, _, err := ParseToken("not.a.jwt", []byte("k"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
