package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSecretRoundTrip(t *testing.T) {
	encoded, err := HashSecret("correct horse battery staple")
	require.NoError(t, err)
	require.Contains(t, encoded, ":")

	require.True(t, VerifySecret("correct horse battery staple", encoded))
	require.False(t, VerifySecret("wrong secret", encoded))
	require.False(t, VerifySecret("", encoded))
}

func TestHashSecretIsSalted(t *testing.T) {
	a, err := HashSecret("same secret")
	require.NoError(t, err)
	b, err := HashSecret("same secret")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.True(t, VerifySecret("same secret", a))
	require.True(t, VerifySecret("same secret", b))
}

func TestVerifySecretMalformedHash(t *testing.T) {
	require.False(t, VerifySecret("secret", ""))
	require.False(t, VerifySecret("secret", "no-separator"))
	require.False(t, VerifySecret("secret", "!!!:also-not-base64"))

	encoded, err := HashSecret("secret")
	require.NoError(t, err)
	// corrupt the derived-key half
	parts := strings.SplitN(encoded, ":", 2)
	require.False(t, VerifySecret("secret", parts[0]+":QUJD"))
}

func TestHashTokenIsStable(t *testing.T) {
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	// URL-safe alphabet, no padding surprises in lookups
	require.NotContains(t, HashToken("abc"), "+")
	require.NotContains(t, HashToken("abc"), "/")
}

func TestGenerateSecureToken(t *testing.T) {
	tok := GenerateSecureToken(64)
	require.Len(t, tok, 64)
	for _, r := range tok {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		require.True(t, isAlnum, "unexpected character %q", r)
	}
	require.NotEqual(t, GenerateSecureToken(64), GenerateSecureToken(64))
}
