package aeswrapper

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

var (
	ErrInvalidKeyLength   = errors.New("invalid key length, must be 16 or 32 bytes long")
	ErrCipherFailure      = errors.New("cipher creation failure")
	ErrGCMFailure         = errors.New("gcm creation failure")
	ErrRandomNonceFailure = errors.New("random nonce creation failure")
	ErrOpenDataFailure    = errors.New("open data failure, cannot decrypt data")
	ErrDataTooShort       = errors.New("sealed data is too short")
	ErrEmptyPassphrase    = errors.New("passphrase is empty")
)

const (
	nonceSize = 12
	saltSize  = 16
	keySize   = 32

	// scrypt cost parameters recommended for interactive logins.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Helper wraps AES encryption and decryption.
// Uses Galois Counter Mode (GCM) for encryption and decryption.
type Helper struct{}

// New creates a new Helper.
func New() Helper {
	return Helper{}
}

// Encrypt encrypts data with key.
// Key must be 16 or 32 bytes long.
func (h Helper) Encrypt(key, data []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrRandomNonceFailure, err)
	}

	return aesgcm.Seal(nonce, nonce, data, nil), nil
}

// Decrypt decrypts data with key.
// Key must be 16 or 32 bytes long.
func (h Helper) Decrypt(key, data []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize+aesgcm.Overhead() {
		return nil, ErrDataTooShort
	}
	nonce, cipherText := data[:nonceSize], data[nonceSize:]

	plaintext, err := aesgcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.Join(ErrOpenDataFailure, err)
	}

	return plaintext, nil
}

// Seal encrypts data with the key derived from the passphrase.
// The random salt is prepended to the result.
func (h Helper) Seal(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Join(ErrRandomNonceFailure, err)
	}
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	sealed, err := h.Encrypt(key, data)
	if err != nil {
		return nil, err
	}
	return append(salt, sealed...), nil
}

// Open decrypts data sealed with Seal.
func (h Helper) Open(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if len(data) < saltSize {
		return nil, ErrDataTooShort
	}
	key, err := scrypt.Key(passphrase, data[:saltSize], scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	return h.Decrypt(key, data[saltSize:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 && len(key) != 16 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrCipherFailure, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrGCMFailure, err)
	}
	return aesgcm, nil
}
