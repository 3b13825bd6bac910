package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoxRoundTrip(t *testing.T) {
	box, err := New("test-secret")
	require.NoError(t, err)

	for _, plaintext := range []string{"", "ya29.access-token", "1//refresh-token-with-slashes"} {
		sealed, err := box.Encrypt(plaintext)
		require.NoError(t, err)

		opened, err := box.Decrypt(sealed)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestBoxFreshNoncePerCall(t *testing.T) {
	box, err := New("test-secret")
	require.NoError(t, err)

	first, err := box.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := box.Encrypt("same plaintext")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestBoxRejectsTamperedCiphertext(t *testing.T) {
	box, err := New("test-secret")
	require.NoError(t, err)

	sealed, err := box.Encrypt("token")
	require.NoError(t, err)

	_, err = box.Decrypt("not-base64!!!")
	require.Error(t, err)

	_, err = box.Decrypt("c2hvcnQ=")
	require.Error(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-5] ^= 'x'
	_, err = box.Decrypt(string(tampered))
	require.Error(t, err)
}

func TestBoxRejectsWrongKey(t *testing.T) {
	box, err := New("key-one")
	require.NoError(t, err)
	other, err := New("key-two")
	require.NoError(t, err)

	sealed, err := box.Encrypt("token")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	require.Error(t, err)
}
