package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenValue(t *testing.T) {
	value, err := GenerateTokenValue()
	require.NoError(t, err)
	assert.Len(t, value, 43)

	// base64url output carries no padding or URL-hostile characters.
	assert.NotContains(t, value, "=")
	assert.NotContains(t, value, "+")
	assert.NotContains(t, value, "/")
}

func TestGenerateTokenValueUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		value, err := GenerateTokenValue()
		require.NoError(t, err)
		_, dup := seen[value]
		require.False(t, dup, "duplicate token value after %d draws", i)
		seen[value] = struct{}{}
	}
}

func TestGenerateRandomStringLength(t *testing.T) {
	for _, n := range []int{1, 16, 64} {
		value, err := GenerateRandomString(n)
		require.NoError(t, err)
		// RawURLEncoding: ceil(n*4/3) characters.
		assert.Equal(t, (n*4+2)/3, len(value))
		assert.False(t, strings.ContainsAny(value, "+/="))
	}
}
