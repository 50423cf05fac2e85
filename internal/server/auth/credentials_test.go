package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", h)

	assert.True(t, VerifyPassword("correct horse", h))
	assert.False(t, VerifyPassword("wrong horse", h))
}

func TestHashPassword_DistinctSalts(t *testing.T) {
	h1, err := HashPassword("same input")
	require.NoError(t, err)
	h2, err := HashPassword("same input")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "bcrypt must salt each hash")
	assert.True(t, VerifyPassword("same input", h1))
	assert.True(t, VerifyPassword("same input", h2))
}

func TestVerifyPassword_GarbageHash(t *testing.T) {
	assert.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
}

func TestHashSecret_DeterministicHex(t *testing.T) {
	d1 := HashSecret("abc123")
	d2 := HashSecret("abc123")

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
	assert.NotEqual(t, d1, HashSecret("abc124"))
}

func TestSecretDigestEqual(t *testing.T) {
	d := HashSecret("s")
	assert.True(t, SecretDigestEqual(d, HashSecret("s")))
	assert.False(t, SecretDigestEqual(d, HashSecret("other")))
	assert.False(t, SecretDigestEqual(d, ""))
}
