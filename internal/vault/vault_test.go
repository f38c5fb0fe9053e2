package vault

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return v
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	_, err := New([]byte("too-short"))
	require.Error(t, err)

	_, err = New(make([]byte, 33))
	require.Error(t, err)

	_, err = New(make([]byte, 32))
	require.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)

	plaintexts := []string{
		"access-token-abc|1735689600|refresh-token-xyz",
		"",
		"short",
		strings.Repeat("x", 4096),
	}
	for _, plaintext := range plaintexts {
		envelope, err := v.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := v.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v := testVault(t)

	first, err := v.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := v.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEnvelopeFormat(t *testing.T) {
	v := testVault(t)

	envelope, err := v.Encrypt("token|123|refresh")
	require.NoError(t, err)

	parts := strings.Split(envelope, ":")
	require.Len(t, parts, 3)
	for _, part := range parts {
		_, err := base64.StdEncoding.DecodeString(part)
		require.NoError(t, err)
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	v := testVault(t)

	envelope, err := v.Encrypt("access-token-abc|1735689600|refresh-token-xyz")
	require.NoError(t, err)
	parts := strings.Split(envelope, ":")

	// corrupt one byte in each segment in turn
	for i := 0; i < 3; i++ {
		raw, err := base64.StdEncoding.DecodeString(parts[i])
		require.NoError(t, err)
		raw[0] ^= 0x01

		tampered := make([]string, 3)
		copy(tampered, parts)
		tampered[i] = base64.StdEncoding.EncodeToString(raw)

		_, err = v.Decrypt(strings.Join(tampered, ":"))
		assert.ErrorIs(t, err, ErrDecryptFailed, "segment %d", i)
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	v := testVault(t)

	for _, envelope := range []string{
		"",
		"onlyonepart",
		"two:parts",
		"a:b:c:d",
		"!!!:AAAA:AAAA",
		"AAAA:!!!:AAAA",
		"AAAA:AAAA:!!!",
	} {
		_, err := v.Decrypt(envelope)
		assert.ErrorIs(t, err, ErrMalformedEnvelope, "envelope %q", envelope)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	v1 := testVault(t)
	v2, err := New([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	envelope, err := v1.Encrypt("secret")
	require.NoError(t, err)

	_, err = v2.Decrypt(envelope)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestParseTriple(t *testing.T) {
	triple, err := ParseTriple("access-abc|1735689600|refresh-xyz")
	require.NoError(t, err)
	assert.Equal(t, "access-abc", triple.AccessToken)
	assert.Equal(t, time.Unix(1735689600, 0), triple.ExpiresAt)
	assert.Equal(t, "refresh-xyz", triple.RefreshToken)

	for _, bad := range []string{
		"",
		"noseparators",
		"a|b",
		"a|notanumber|c",
		"|123|c",
		"a|123|",
	} {
		_, err := ParseTriple(bad)
		assert.ErrorIs(t, err, ErrMalformedTriple, "input %q", bad)
	}
}

func TestTripleEncodeRoundTrip(t *testing.T) {
	original := &Triple{
		AccessToken:  "access-abc",
		ExpiresAt:    time.Unix(1735689600, 0),
		RefreshToken: "refresh-xyz",
	}
	parsed, err := ParseTriple(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestExpiredWithinBoundary(t *testing.T) {
	now := time.Unix(1735689600, 0)
	triple := &Triple{
		AccessToken:  "a",
		ExpiresAt:    now.Add(300 * time.Second),
		RefreshToken: "r",
	}

	// expiresAt - now == buffer is expired
	assert.True(t, triple.ExpiredWithinAt(now, 300*time.Second))
	assert.True(t, triple.ExpiredWithinAt(now, 301*time.Second))
	assert.False(t, triple.ExpiredWithinAt(now, 299*time.Second))

	past := &Triple{AccessToken: "a", ExpiresAt: now.Add(-time.Hour), RefreshToken: "r"}
	assert.True(t, past.ExpiredWithinAt(now, 0))
}

func TestMaskedHidesTokens(t *testing.T) {
	triple := &Triple{
		AccessToken:  "access-token-abcdef",
		ExpiresAt:    time.Unix(1735689600, 0),
		RefreshToken: "refresh-token-uvwxyz",
	}

	masked := triple.Masked()
	assert.NotContains(t, masked, "access-token-abcdef")
	assert.NotContains(t, masked, "refresh-token-uvwxyz")
	assert.Contains(t, masked, "acce")
	assert.Contains(t, masked, "xyz")

	short := &Triple{AccessToken: "tiny", ExpiresAt: time.Unix(0, 0), RefreshToken: "sm"}
	assert.Equal(t, "****|0|****", short.Masked())
}
