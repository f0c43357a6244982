package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	raw, err := codec.Issue("user-42")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	userID, err := codec.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "user-42", userID)
}

func TestIssueAcceptsAnySecretLength(t *testing.T) {
	// HS256 demands 32 bytes of key material; the codec derives it from the
	// secret, so short and long secrets both sign successfully.
	for _, secret := range []string{"x", "test-secret", strings.Repeat("s", 64)} {
		codec := NewCodec(secret, time.Hour)

		raw, err := codec.Issue("user-42")
		require.NoError(t, err, "secret of length %d", len(secret))

		userID, err := codec.Verify(raw)
		require.NoError(t, err)
		require.Equal(t, "user-42", userID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewCodec("secret-a", time.Hour)
	verifier := NewCodec("secret-b", time.Hour)

	raw, err := issuer.Issue("user-42")
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := codec.Verify(raw)
		require.ErrorIs(t, err, ErrMalformed, "token %q", raw)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec("test-secret", time.Hour)
	codec.now = func() time.Time { return issued }

	raw, err := codec.Issue("user-42")
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyAcceptsTokenAtExactExpiry(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec("test-secret", time.Hour)
	codec.now = func() time.Time { return issued }

	raw, err := codec.Issue("user-42")
	require.NoError(t, err)

	// exp == now is still valid, the token only dies strictly after expiry.
	codec.now = func() time.Time { return issued.Add(time.Hour) }
	userID, err := codec.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "user-42", userID)
}

func TestDefaultTTLFallback(t *testing.T) {
	codec := NewCodec("test-secret", 0)
	require.Equal(t, DefaultTTL, codec.ttl)
}
