// Package cryptox is the cipher engine of the lock subsystem: key
// derivation, PIN verification, authenticated encryption of journal content,
// and wrapping of the master key under an unlock method's derived key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/models"
)

const (
	// SaltSize is the length of PIN salts.
	SaltSize = 16
	// MasterKeySize is the length of the master key and all derived keys.
	MasterKeySize = 32

	nonceSize = 12
)

// GenerateSalt returns a fresh random PIN salt.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// GenerateMasterKey returns a fresh random master key. Generated exactly
// once per journal, at first PIN setup; regenerating would orphan all
// previously encrypted content.
func GenerateMasterKey() []byte {
	return common.GenerateRandByteArray(MasterKeySize)
}

// Encrypt seals plaintext with AES-256-GCM under key, drawing a fresh
// 12-byte nonce for every call.
func Encrypt(plaintext, key []byte) (*models.EncryptedBlob, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &models.EncryptedBlob{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Alg:        models.AlgAESGCM,
	}, nil
}

// Decrypt opens a blob sealed by Encrypt. A wrong key, a corrupted
// ciphertext, or a tampered nonce all fail closed with
// common.ErrDecryptionFailed; partially decrypted data is never returned.
func Decrypt(blob *models.EncryptedBlob, key []byte) ([]byte, error) {
	if blob == nil || len(blob.Nonce) == 0 {
		return nil, common.ErrDecryptionFailed
	}
	if blob.Alg != "" && blob.Alg != models.AlgAESGCM {
		return nil, fmt.Errorf("unsupported algorithm %q: %w", blob.Alg, common.ErrDecryptionFailed)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptMasterKey wraps the master key under a derived wrapping key.
func EncryptMasterKey(masterKey, wrappingKey []byte) (*models.EncryptedBlob, error) {
	blob, err := Encrypt(masterKey, wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("wrap master key: %w", err)
	}
	return blob, nil
}

// DecryptMasterKey unwraps a master key previously wrapped by
// EncryptMasterKey. On any mismatch it returns common.ErrDecryptionFailed.
func DecryptMasterKey(blob *models.EncryptedBlob, wrappingKey []byte) ([]byte, error) {
	key, err := Decrypt(blob, wrappingKey)
	if err != nil {
		return nil, err
	}
	if len(key) != MasterKeySize {
		common.WipeByteArray(key)
		return nil, common.ErrDecryptionFailed
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
