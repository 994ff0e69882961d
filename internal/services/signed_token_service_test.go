package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testServerKey = []byte("test-server-key-0123456789abcdef")

func TestSignedTokenServiceRequiresKey(t *testing.T) {
	_, err := NewSignedTokenService(nil)
	require.Error(t, err)

	_, err = NewSignedTokenService(testServerKey)
	require.NoError(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, err := NewSignedTokenService(testServerKey)
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("alice", time.Hour)
	require.NoError(t, err)

	subject, ok := svc.ValidateAccessToken(token)
	require.True(t, ok)
	require.Equal(t, "alice", subject)
}

func TestAccessTokenExpires(t *testing.T) {
	svc, err := NewSignedTokenService(testServerKey)
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("alice", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, ok := svc.ValidateAccessToken(token)
	require.False(t, ok)
}

func TestURLTokenRoundTrip(t *testing.T) {
	svc, err := NewSignedTokenService(testServerKey)
	require.NoError(t, err)

	const url = "https://example.com/files/report.pdf"
	token, err := svc.GenerateURLToken(url, time.Hour)
	require.NoError(t, err)

	require.True(t, svc.ValidateURLToken(token, url))
	require.False(t, svc.ValidateURLToken(token, "https://example.com/files/other.pdf"))
}

func TestSignedTokenRejectsTampering(t *testing.T) {
	svc, err := NewSignedTokenService(testServerKey)
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("alice", time.Hour)
	require.NoError(t, err)

	// flip a character in the payload half
	dot := strings.IndexByte(token, '.')
	require.Positive(t, dot)
	mutated := []byte(token)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	_, ok := svc.ValidateAccessToken(string(mutated))
	require.False(t, ok)

	// malformed inputs
	_, ok = svc.ValidateAccessToken("")
	require.False(t, ok)
	_, ok = svc.ValidateAccessToken("no-separator")
	require.False(t, ok)
	_, ok = svc.ValidateAccessToken("not!base64.not!base64")
	require.False(t, ok)
}

func TestSignedTokenRejectsForeignKey(t *testing.T) {
	svc, err := NewSignedTokenService(testServerKey)
	require.NoError(t, err)
	other, err := NewSignedTokenService([]byte("a-completely-different-key"))
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("alice", time.Hour)
	require.NoError(t, err)

	_, ok := other.ValidateAccessToken(token)
	require.False(t, ok)
}
