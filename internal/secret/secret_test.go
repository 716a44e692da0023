package secret

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSecretBox_RoundTrip(t *testing.T) {
	box, err := New(hexKey)
	require.NoError(t, err)

	ct, err := EncryptString(box, `{"username":"coach","password":"pw"}`)
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "coach")

	pt, err := DecryptString(box, ct)
	require.NoError(t, err)
	assert.Equal(t, `{"username":"coach","password":"pw"}`, pt)
}

func TestSecretBox_Base64Key(t *testing.T) {
	raw := make([]byte, 32)
	box, err := New(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.NotNil(t, box)
}

func TestSecretBox_RejectsBadKeys(t *testing.T) {
	for _, k := range []string{"", "short", strings.Repeat("a", 63)} {
		_, err := New(k)
		assert.ErrorIs(t, err, ErrInvalidKey, k)
	}
}

func TestSecretBox_TamperDetected(t *testing.T) {
	box, _ := New(hexKey)
	ct, err := box.Encrypt([]byte("token"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0xff
	_, err = box.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = box.Decrypt([]byte("tiny"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptString_Empty(t *testing.T) {
	box, _ := New(hexKey)
	s, err := DecryptString(box, nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}
