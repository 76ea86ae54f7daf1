// Package crypto implements lbcore's cryptographic primitives: symmetric
// AEAD over file keys, ECDH-based asymmetric key wrapping, ECDSA signatures,
// and document HMAC.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/lockbook/lbcore/pkg/lberr"
)

// FileKey is a 32-byte AES-256 symmetric key owned by a single file.
type FileKey [32]byte

// NewFileKey generates a fresh random file key.
func NewFileKey() FileKey {
	var k FileKey
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return k
}

// Encrypt seals plaintext under key using AES-256-GCM with a random nonce
// prepended to the ciphertext, matching the shape of gcm.Seal(nonce, ...).
func Encrypt(key FileKey, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key[:])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, lberr.UnexpectedErr("generate nonce: %v", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func Decrypt(key FileKey, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key[:])
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, lberr.New(lberr.DecryptFailed, "ciphertext too short")
	}

	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, lberr.New(lberr.DecryptFailed, err.Error())
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, lberr.UnexpectedErr("new cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, lberr.UnexpectedErr("new gcm: %v", err)
	}
	return gcm, nil
}
