package security

import (
	"testing"

	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEncryptDecrypt(t *testing.T) {
	svc := NewAESService("short-secret")

	sealed, err := svc.Encrypt(`{"access_token":"abc"}`)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access_token")

	again, err := svc.Encrypt(`{"access_token":"abc"}`)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := svc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"abc"}`, plain)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	sealed, err := NewAESService("key-one").Encrypt("secret")
	require.NoError(t, err)

	_, err = NewAESService("key-two").Decrypt(sealed)
	assert.Error(t, err)

	_, err = NewAESService("key-one").Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestEmptyValues(t *testing.T) {
	svc := NewAESService("k")
	out, err := svc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, svc.Hash(""))
	assert.Len(t, svc.Hash("x"), 64)
}

func TestNewEncryptionServiceRequiresKeyInProduction(t *testing.T) {
	_, err := NewEncryptionService(config.Config{Environment: "production"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingKey)

	svc, err := NewEncryptionService(config.Config{Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
