package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	iv := []byte("abcdef9876543210")
	v, err := New(key, iv)
	require.NoError(t, err)
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	v := testVault(t)

	for _, plain := range []string{
		"",
		"short",
		"a-refresh-token-with-sixty-four-characters-of-opaque-material!!",
	} {
		ct, err := v.Encrypt(plain)
		require.NoError(t, err)
		require.NotEqual(t, plain, ct)

		got, err := v.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, plain, got)
	}
}

func TestVault_RejectsBadKeyMaterial(t *testing.T) {
	_, err := New([]byte("too-short"), []byte("abcdef9876543210"))
	require.Error(t, err)

	_, err = New([]byte("0123456789abcdef0123456789abcdef"), []byte("short-iv"))
	require.Error(t, err)
}

func TestVault_DecryptGarbageIsCryptoError(t *testing.T) {
	v := testVault(t)

	for _, ct := range []string{
		"not base64 at all %%%",
		"YWJj", // valid base64, not block-aligned
		"",
	} {
		_, err := v.Decrypt(ct)
		require.Error(t, err)

		var cerr *CryptoError
		require.True(t, errors.As(err, &cerr))
		require.Equal(t, "decrypt", cerr.Op)
	}
}

func TestVault_DecryptWithWrongIVFails(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	v1, err := New(key, []byte("abcdef9876543210"))
	require.NoError(t, err)
	v2, err := New(key, []byte("0123456789abcdef"))
	require.NoError(t, err)

	ct, err := v1.Encrypt("secret-token")
	require.NoError(t, err)

	got, err := v2.Decrypt(ct)
	if err == nil {
		require.NotEqual(t, "secret-token", got)
	}
}
