package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSignerKey(testKeyHex, "correct horse battery staple")
	require.NoError(t, err)

	got, err := DecryptSignerKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSignerKey(testKeyHex, "right")
	require.NoError(t, err)

	_, err = DecryptSignerKey(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := EncryptSignerKey("zzzz", "pw")
	require.Error(t, err)

	_, err = EncryptSignerKey("abcd", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32-byte key")

	_, err = EncryptSignerKey(testKeyHex, "")
	require.Error(t, err)
}

func TestLoadSignerKeyRawTakesPrecedence(t *testing.T) {
	got, err := LoadSignerKey(KeyConfig{RawKey: "0x" + testKeyHex, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadSignerKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptSignerKey(testKeyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadSignerKey(KeyConfig{EncryptedKeyPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadSignerKeyNoSource(t *testing.T) {
	_, err := LoadSignerKey(KeyConfig{})
	require.Error(t, err)
}
