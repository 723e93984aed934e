// Package security encrypts provider credentials at rest.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/smallbiznis/gstbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrMissingKey         = errors.New("encryption_key_not_configured")
	ErrCiphertextTooShort = errors.New("ciphertext_too_short")
)

const developmentKey = "gstbill-development-only-key"

var Module = fx.Module("security",
	fx.Provide(NewEncryptionService),
)

type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Hash(value string) string
}

type aesEncryptionService struct {
	key []byte
}

// NewEncryptionService derives an AES-256 key from the configured secret. Keys that
// are not 32 bytes long are hashed with SHA-256.
func NewEncryptionService(cfg config.Config, log *zap.Logger) (EncryptionService, error) {
	secret := cfg.EncryptionKey
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingKey
		}
		log.Warn("ENCRYPTION_KEY not set, using development key")
		secret = developmentKey
	}
	return NewAESService(secret), nil
}

func NewAESService(secret string) EncryptionService {
	key := []byte(secret)
	if len(key) != 32 {
		sum := sha256.Sum256(key)
		key = sum[:]
	}
	return &aesEncryptionService{key: key}
}

// Encrypt returns base64(nonce || sealed plaintext).
func (s *aesEncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *aesEncryptionService) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(decoded) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, sealed := decoded[:nonceSize], decoded[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt ciphertext: %w", err)
	}
	return string(plaintext), nil
}

// Hash is a one-way SHA-256 hex digest.
func (s *aesEncryptionService) Hash(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func (s *aesEncryptionService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher block: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
